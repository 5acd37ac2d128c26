package domain

// StylePreset pairs a display name with the generation prompt sent to the
// synthesis service.
type StylePreset struct {
	Name   string
	Prompt string
}

// DefaultStyle is used when a request omits the style key.
const DefaultStyle = "fridge"

// StylePresets is the fixed table of collage styles offered to clients.
var StylePresets = map[string]StylePreset{
	"fridge": {
		Name:   "On the Fridge",
		Prompt: "Tightly clustered photos pinned with colorful fruit-shaped magnets on a teal refrigerator door, photos overlapping each other significantly, filling most of the frame with minimal background visible, cozy family photo collage",
	},
	"scrapbook": {
		Name:   "Old Scrapbook",
		Prompt: "Arrange these photos on a vintage scrapbook page with aged cream paper texture, simple washi tape to hold photos in place, minimal subtle decorations only, photos are the focus not the background, no flowers no stickers no nametags no keys, clean understated nostalgic feel",
	},
	"clean": {
		Name:   "Clean",
		Prompt: "Arrange these photos in a clean, modern gallery layout on a pure white background with subtle drop shadows, balanced spacing",
	},
}

var styleOrder = []string{"fridge", "scrapbook", "clean"}

// StyleKeys returns the preset keys in presentation order.
func StyleKeys() []string {
	keys := make([]string, len(styleOrder))
	copy(keys, styleOrder)
	return keys
}

// StyleFor resolves a preset key, falling back to the default preset for an
// unknown key. Admission validation makes the fallback unreachable in
// practice; workers still resolve through it rather than trusting the
// stored value.
func StyleFor(key string) StylePreset {
	if preset, ok := StylePresets[key]; ok {
		return preset
	}
	return StylePresets[DefaultStyle]
}

// Dimensions is an output pixel size.
type Dimensions struct {
	Width  int
	Height int
}

// DefaultAspectRatio is used when a request omits the aspect-ratio key.
const DefaultAspectRatio = "16:9"

// AspectRatios maps each supported aspect-ratio key to the output
// dimensions requested from the synthesis service (2K longest edge).
var AspectRatios = map[string]Dimensions{
	"16:9": {Width: 2048, Height: 1152},
	"1:1":  {Width: 2048, Height: 2048},
	"9:16": {Width: 1152, Height: 2048},
}

var aspectOrder = []string{"16:9", "1:1", "9:16"}

// AspectRatioKeys returns the aspect-ratio keys in presentation order.
func AspectRatioKeys() []string {
	keys := make([]string, len(aspectOrder))
	copy(keys, aspectOrder)
	return keys
}

// Submission limits and normalization policy.
const (
	MinImages     = 2
	MaxImages     = 6
	MaxImageBytes = 20 << 20  // per staged payload
	MaxTotalBytes = 100 << 20 // per submission

	DefaultMaxQueuedJobs = 10

	OptimizeMaxEdge     = 768
	OptimizeJPEGQuality = 85
)
