package driven

import (
	"context"
	"errors"

	"github.com/efisher/swapreview/internal/domain/model"
)

// ErrSelfPledge is returned when the offeror and target author are the same
// user. The ledger rejects this before touching storage.
var ErrSelfPledge = errors.New("offeror may not pledge against their own item")

// MatchOutcome is the result of a single atomic match-or-create operation.
// Exactly one of the two cases holds: either a reverse-keyed pledge was found
// and consumed (Matched with the partner pledge), or a new pledge was
// recorded (Created).
type MatchOutcome struct {
	Matched bool
	Partner *model.Pledge // The consumed counterpart pledge; nil when Created.
}

// PledgeLedger defines the driven port for the pledge escrow ledger.
type PledgeLedger interface {
	// TryMatchOrCreate executes the match-or-create algorithm as one atomic
	// unit against the partition identified by pledge.Scope: look up the
	// pledge keyed by the reverse pair (targetAuthor, offeror); if present,
	// delete it and report a match; otherwise record the given pledge,
	// overwriting any existing pledge for the same (offeror, targetAuthor)
	// pair (last-write-wins). No intermediate state between the lookup and
	// the delete-or-insert is observable by any other operation.
	//
	// Returns ErrSelfPledge when pledge.Offeror == pledge.TargetAuthor.
	TryMatchOrCreate(ctx context.Context, pledge model.Pledge) (MatchOutcome, error)

	// List returns all outstanding pledges in the given partition, ordered
	// by creation time. Read-only.
	List(ctx context.Context, scope string) ([]model.Pledge, error)
}
