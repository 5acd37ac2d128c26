package domain

import "testing"

func TestStyleForKnownKeys(t *testing.T) {
	for _, key := range StyleKeys() {
		preset := StyleFor(key)
		if preset.Name == "" || preset.Prompt == "" {
			t.Fatalf("preset %q incomplete: %+v", key, preset)
		}
	}
}

func TestStyleForUnknownKeyFallsBack(t *testing.T) {
	got := StyleFor("does-not-exist")
	want := StylePresets[DefaultStyle]
	if got != want {
		t.Fatalf("StyleFor fallback = %+v, want %+v", got, want)
	}
}

func TestAspectRatioTables(t *testing.T) {
	keys := AspectRatioKeys()
	if len(keys) != len(AspectRatios) {
		t.Fatalf("AspectRatioKeys() has %d keys, table has %d", len(keys), len(AspectRatios))
	}
	for _, key := range keys {
		dims, ok := AspectRatios[key]
		if !ok {
			t.Fatalf("ordered key %q missing from table", key)
		}
		longest := dims.Width
		if dims.Height > longest {
			longest = dims.Height
		}
		if longest != 2048 {
			t.Fatalf("aspect %q longest edge = %d, want 2048", key, longest)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.want {
			t.Fatalf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
