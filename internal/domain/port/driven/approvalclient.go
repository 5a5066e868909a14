package driven

import "context"

// ApprovalClient defines the driven port for submitting an approval on an
// item. The access token identifies whose behalf the approval is submitted
// on; itemScope is the repository ("owner/repo") and itemNumber the pull
// request number. Failures are reported as errors with enough context for a
// human-readable message; they are never retried by the caller.
type ApprovalClient interface {
	SubmitApproval(ctx context.Context, access, itemScope string, itemNumber int) error
}
