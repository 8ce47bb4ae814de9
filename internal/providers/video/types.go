package video

import "context"

// SubmitRequest captures the inputs for an asynchronous video generation
// submission. CallbackURL is where the vendor reports completion; it embeds
// the job identity and must be treated as the only binding between the
// anonymous callback and the job.
type SubmitRequest struct {
	Prompt          string
	SourceImageURL  string
	DurationSeconds int
	Resolution      string
	Seed            int
	CallbackURL     string
	RequestID       string
}

// Submitter is the fire-and-forget video generation contract. A nil error
// means the vendor accepted the job; the result arrives later on the
// callback URL.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) error
}
