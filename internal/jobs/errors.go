package jobs

// Reason identifies which admission check rejected a submission. The
// transport maps reasons to status codes; none of them enqueue a job.
type Reason string

const (
	ReasonQueueFull          Reason = "queue_full"
	ReasonTooFewImages       Reason = "too_few_images"
	ReasonTooManyImages      Reason = "too_many_images"
	ReasonImageTooLarge      Reason = "image_too_large"
	ReasonPayloadTooLarge    Reason = "payload_too_large"
	ReasonUnknownStyle       Reason = "unknown_style"
	ReasonUnknownAspectRatio Reason = "unknown_aspect_ratio"
)

// AdmissionError is a rejection surfaced synchronously to the submitter.
type AdmissionError struct {
	Reason  Reason
	Message string
}

func (e *AdmissionError) Error() string {
	return e.Message
}

func reject(reason Reason, message string) error {
	return &AdmissionError{Reason: reason, Message: message}
}
