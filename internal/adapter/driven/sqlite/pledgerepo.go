package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PledgeLedger = (*PledgeRepo)(nil)

// PledgeRepo is the SQLite implementation of the PledgeLedger port interface.
// TryMatchOrCreate runs inside a single transaction on the writer connection;
// because the writer pool holds exactly one connection, every match-or-create
// across all partitions is serialized, so no operation can observe the state
// between the reverse-key lookup and the delete-or-insert.
type PledgeRepo struct {
	db *DB
}

// NewPledgeRepo creates a new PledgeRepo backed by the given DB.
func NewPledgeRepo(db *DB) *PledgeRepo {
	return &PledgeRepo{db: db}
}

// TryMatchOrCreate looks up the pledge keyed by the reverse pair
// (targetAuthor, offeror) within pledge.Scope. If found, the counterpart is
// deleted and returned as a match; otherwise the given pledge is recorded,
// overwriting any existing pledge for the same (offeror, targetAuthor) pair.
func (r *PledgeRepo) TryMatchOrCreate(ctx context.Context, pledge model.Pledge) (driven.MatchOutcome, error) {
	if pledge.Offeror == pledge.TargetAuthor {
		return driven.MatchOutcome{}, driven.ErrSelfPledge
	}

	if pledge.CreatedAt.IsZero() {
		pledge.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return driven.MatchOutcome{}, fmt.Errorf("begin match-or-create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Reverse-key lookup: did the target author already pledge to the offeror?
	// A direct keyed read, never a scan over the partition's pledges.
	const reverseQuery = `
		SELECT id, scope, offeror, offeror_id, target_author, target_author_id,
		       item_number, item_scope, created_at
		FROM pledges
		WHERE scope = ? AND offeror = ? AND target_author = ?
	`

	partner, err := scanPledge(tx.QueryRowContext(ctx, reverseQuery, pledge.Scope, pledge.TargetAuthor, pledge.Offeror))
	if errors.Is(err, sql.ErrNoRows) {
		const insertQuery = `
			INSERT INTO pledges (
				scope, offeror, offeror_id, target_author, target_author_id,
				item_number, item_scope, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(scope, offeror, target_author) DO UPDATE SET
				offeror_id = excluded.offeror_id,
				target_author_id = excluded.target_author_id,
				item_number = excluded.item_number,
				item_scope = excluded.item_scope,
				created_at = excluded.created_at
		`

		_, err = tx.ExecContext(ctx, insertQuery,
			pledge.Scope, pledge.Offeror, pledge.OfferorID,
			pledge.TargetAuthor, pledge.TargetAuthorID,
			pledge.ItemNumber, pledge.ItemScope, pledge.CreatedAt.UTC(),
		)
		if err != nil {
			return driven.MatchOutcome{}, fmt.Errorf("record pledge %s->%s in %s: %w",
				pledge.Offeror, pledge.TargetAuthor, pledge.Scope, err)
		}

		if err := tx.Commit(); err != nil {
			return driven.MatchOutcome{}, fmt.Errorf("commit pledge create: %w", err)
		}

		return driven.MatchOutcome{Matched: false}, nil
	}
	if err != nil {
		return driven.MatchOutcome{}, fmt.Errorf("reverse lookup %s->%s in %s: %w",
			pledge.TargetAuthor, pledge.Offeror, pledge.Scope, err)
	}

	// Consume the counterpart. The pledge is gone the moment this commits;
	// nothing downstream restores it.
	if _, err := tx.ExecContext(ctx, `DELETE FROM pledges WHERE id = ?`, partner.ID); err != nil {
		return driven.MatchOutcome{}, fmt.Errorf("consume pledge %d: %w", partner.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return driven.MatchOutcome{}, fmt.Errorf("commit pledge match: %w", err)
	}

	return driven.MatchOutcome{Matched: true, Partner: partner}, nil
}

// List returns all outstanding pledges in the given partition, ordered by
// creation time then id for a stable order.
func (r *PledgeRepo) List(ctx context.Context, scope string) ([]model.Pledge, error) {
	const query = `
		SELECT id, scope, offeror, offeror_id, target_author, target_author_id,
		       item_number, item_scope, created_at
		FROM pledges
		WHERE scope = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("list pledges for %s: %w", scope, err)
	}
	defer rows.Close()

	var pledges []model.Pledge
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pledge: %w", err)
		}
		pledges = append(pledges, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pledges: %w", err)
	}

	return pledges, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPledge scans a single pledge row. Passes through sql.ErrNoRows.
func scanPledge(row rowScanner) (*model.Pledge, error) {
	var p model.Pledge
	var createdAt string

	err := row.Scan(&p.ID, &p.Scope, &p.Offeror, &p.OfferorID,
		&p.TargetAuthor, &p.TargetAuthorID, &p.ItemNumber, &p.ItemScope, &createdAt)
	if err != nil {
		return nil, err
	}

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &p, nil
}

// parseTime parses SQLite timestamp strings in the formats the driver emits.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
