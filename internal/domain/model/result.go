package model

// Result is the closed set of outcomes a processed command can produce.
// Each variant carries the structured data a caller needs to render a
// message; the engine itself produces no presentation text.
//
// The unexported method seals the set: no variant can be defined outside
// this package.
type Result interface {
	// Type returns the wire identifier of the variant, e.g. "pledge_created".
	Type() string

	isResult()
}

// PledgeCreated reports that no reverse pledge existed, so a new pledge was
// recorded and now waits for the target author to reciprocate.
type PledgeCreated struct {
	ItemNumber int
	ItemScope  string
}

// MutualApprovalCompleted reports that a reverse pledge was found, consumed,
// and both sides' items were approved.
type MutualApprovalCompleted struct {
	ItemNumber        int
	ItemScope         string
	PartnerItemNumber int
	PartnerItemScope  string
}

// AwaitingAuthorization reports that a participant has no usable credential.
// The pledge state reached by the ledger operation is left untouched: a
// freshly created pledge stays recorded, and a consumed pledge is not
// restored.
type AwaitingAuthorization struct {
	User         string
	AuthorizeURL string
}

// ApprovalFailed reports that an outbound approval call failed after a match.
// The consumed pledge is not restored.
type ApprovalFailed struct {
	Reason string
}

// SelfApprovalRejected reports that the offeror targeted their own item.
type SelfApprovalRejected struct{}

// AuthorUnknown reports that the target author could not be determined from
// the inbound event.
type AuthorUnknown struct{}

func (PledgeCreated) Type() string           { return "pledge_created" }
func (MutualApprovalCompleted) Type() string { return "mutual_approval_completed" }
func (AwaitingAuthorization) Type() string   { return "awaiting_authorization" }
func (ApprovalFailed) Type() string          { return "approval_failed" }
func (SelfApprovalRejected) Type() string    { return "self_approval_rejected" }
func (AuthorUnknown) Type() string           { return "author_unknown" }

func (PledgeCreated) isResult()           {}
func (MutualApprovalCompleted) isResult() {}
func (AwaitingAuthorization) isResult()   {}
func (ApprovalFailed) isResult()          {}
func (SelfApprovalRejected) isResult()    {}
func (AuthorUnknown) isResult()           {}
