// Package application contains the escrow coordination engine and its
// supporting services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// Engine drives the escrow protocol: validate an inbound command, run the
// ledger's match-or-create, resolve credentials, and submit approvals.
//
// Per pledge the state machine is Absent -> Pledged (on create) -> Absent
// (on match-consume); there is no cancel or expire transition. A pledge is
// consumed inside the ledger transaction, before any credential resolution
// or outbound approval call. If a credential turns out to be missing or an
// approval call fails after a match, the consumed pledge is NOT restored.
// Compensation is deliberately absent: restoring the pledge would change
// what callers observe.
type Engine struct {
	ledger        driven.PledgeLedger
	creds         AccessResolver
	approver      driven.ApprovalClient
	router        *Router
	authorizeBase string // Fallback when a command carries no base URL.
}

// NewEngine creates an Engine with all required collaborators.
func NewEngine(
	ledger driven.PledgeLedger,
	creds AccessResolver,
	approver driven.ApprovalClient,
	router *Router,
	authorizeBase string,
) *Engine {
	return &Engine{
		ledger:        ledger,
		creds:         creds,
		approver:      approver,
		router:        router,
		authorizeBase: authorizeBase,
	}
}

// ProcessCommand executes one inbound command end to end and returns a
// structured result. Every non-fatal path produces a Result; a non-nil error
// means a genuine storage or infrastructure failure and the caller may
// safely retry (though a retry after a consumed pledge matches against
// whatever state remains; processing is not idempotent past that point).
func (e *Engine) ProcessCommand(ctx context.Context, cmd model.Command) (model.Result, error) {
	if cmd.TargetAuthor == "" {
		return model.AuthorUnknown{}, nil
	}
	if cmd.Offeror == cmd.TargetAuthor {
		return model.SelfApprovalRejected{}, nil
	}

	pledge := model.Pledge{
		Scope:          cmd.Scope,
		Offeror:        cmd.Offeror,
		OfferorID:      cmd.OfferorID,
		TargetAuthor:   cmd.TargetAuthor,
		TargetAuthorID: cmd.TargetAuthorID,
		ItemNumber:     cmd.ItemNumber,
		ItemScope:      cmd.ItemScope,
	}

	// The partition lock covers only the ledger mutation. Credential
	// resolution and approval submission happen after it is released so a
	// slow network call never stalls the partition.
	var outcome driven.MatchOutcome
	err := e.router.Do(cmd.Scope, func() error {
		var err error
		outcome, err = e.ledger.TryMatchOrCreate(ctx, pledge)
		return err
	})
	if errors.Is(err, driven.ErrSelfPledge) {
		return model.SelfApprovalRejected{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match or create: %w", err)
	}

	if !outcome.Matched {
		return e.afterCreate(ctx, cmd)
	}
	return e.afterMatch(ctx, cmd, outcome.Partner)
}

// afterCreate handles the no-match path. The credential check here is
// advisory: the pledge is already recorded and stays recorded whether or not
// the offeror is authorized.
func (e *Engine) afterCreate(ctx context.Context, cmd model.Command) (model.Result, error) {
	if _, err := e.creds.GetValidAccess(ctx, cmd.Offeror, cmd.Scope); err != nil {
		if errors.Is(err, driven.ErrNotAuthorized) {
			slog.Info("pledge recorded, offeror not yet authorized",
				"offeror", cmd.Offeror, "scope", cmd.Scope)
			return model.AwaitingAuthorization{
				User:         cmd.Offeror,
				AuthorizeURL: e.authorizeURL(cmd, cmd.Offeror),
			}, nil
		}
		return nil, err
	}

	slog.Info("pledge recorded",
		"offeror", cmd.Offeror,
		"target_author", cmd.TargetAuthor,
		"item", fmt.Sprintf("%s#%d", cmd.ItemScope, cmd.ItemNumber),
		"scope", cmd.Scope,
	)
	return model.PledgeCreated{ItemNumber: cmd.ItemNumber, ItemScope: cmd.ItemScope}, nil
}

// afterMatch handles the matched path. The partner pledge is already
// consumed; none of the failure exits below restore it.
func (e *Engine) afterMatch(ctx context.Context, cmd model.Command, partner *model.Pledge) (model.Result, error) {
	offerorAccess, err := e.creds.GetValidAccess(ctx, cmd.Offeror, cmd.Scope)
	if errors.Is(err, driven.ErrNotAuthorized) {
		return model.AwaitingAuthorization{
			User:         cmd.Offeror,
			AuthorizeURL: e.authorizeURL(cmd, cmd.Offeror),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	targetAccess, err := e.creds.GetValidAccess(ctx, cmd.TargetAuthor, cmd.Scope)
	if errors.Is(err, driven.ErrNotAuthorized) {
		return model.AwaitingAuthorization{
			User:         cmd.TargetAuthor,
			AuthorizeURL: e.authorizeURL(cmd, cmd.TargetAuthor),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	// Each side approves the other party's item: the offeror approves the
	// command's item (authored by the target), the target approves the item
	// named in their consumed pledge (authored by the offeror).
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.approver.SubmitApproval(gctx, offerorAccess, cmd.ItemScope, cmd.ItemNumber)
	})
	g.Go(func() error {
		return e.approver.SubmitApproval(gctx, targetAccess, partner.ItemScope, partner.ItemNumber)
	})
	if err := g.Wait(); err != nil {
		slog.Warn("approval submission failed after match",
			"offeror", cmd.Offeror,
			"target_author", cmd.TargetAuthor,
			"error", err,
		)
		return model.ApprovalFailed{Reason: err.Error()}, nil
	}

	slog.Info("mutual approval completed",
		"offeror", cmd.Offeror,
		"target_author", cmd.TargetAuthor,
		"item", fmt.Sprintf("%s#%d", cmd.ItemScope, cmd.ItemNumber),
		"partner_item", fmt.Sprintf("%s#%d", partner.ItemScope, partner.ItemNumber),
	)
	return model.MutualApprovalCompleted{
		ItemNumber:        cmd.ItemNumber,
		ItemScope:         cmd.ItemScope,
		PartnerItemNumber: partner.ItemNumber,
		PartnerItemScope:  partner.ItemScope,
	}, nil
}

// ListPledges returns the partition's outstanding pledges. Diagnostic,
// read-only.
func (e *Engine) ListPledges(ctx context.Context, scope string) ([]model.Pledge, error) {
	var pledges []model.Pledge
	err := e.router.Do(scope, func() error {
		var err error
		pledges, err = e.ledger.List(ctx, scope)
		return err
	})
	return pledges, err
}

// authorizeURL builds the link a user follows to (re-)authorize. The
// command's base takes precedence over the configured fallback.
func (e *Engine) authorizeURL(cmd model.Command, user string) string {
	base := cmd.AuthorizeBase
	if base == "" {
		base = e.authorizeBase
	}

	u, err := url.Parse(base)
	if err != nil {
		return base
	}

	q := u.Query()
	q.Set("user", user)
	q.Set("scope", cmd.Scope)
	u.RawQuery = q.Encode()
	return u.String()
}
