package journal

import (
	"context"
	"fmt"
	"time"
)

// Outcome is how handling a trigger ended.
type Outcome string

const (
	OutcomeHandled      Outcome = "handled"
	OutcomeMissingInput Outcome = "missing_input" // referenced file absent, reported to the user
	OutcomeIgnored      Outcome = "ignored"       // unknown action
	OutcomeRejected     Outcome = "rejected"      // payload failed validation
	OutcomeFailed       Outcome = "failed"        // host returned an error
)

// Entry is one journal row.
type Entry struct {
	ID        int64     `json:"id"`
	Digest    string    `json:"digest"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Timestamp float64   `json:"timestamp"` // embedded trigger timestamp, seconds
	HandledAt time.Time `json:"handled_at"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

// Record appends e. Recording the same (Digest, Name) twice is a no-op;
// inserted reports whether a row was written.
func (j *Journal) Record(ctx context.Context, e Entry) (inserted bool, err error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO handled_triggers
		(digest, name, action, timestamp, handled_at, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest, name) DO NOTHING
	`,
		e.Digest,
		e.Name,
		e.Action,
		e.Timestamp,
		e.HandledAt.UnixNano(),
		string(e.Outcome),
		e.Detail,
	)
	if err != nil {
		return false, fmt.Errorf("record %s: %w", e.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record %s: %w", e.Name, err)
	}
	return n > 0, nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns
// every entry.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, digest, name, action, timestamp, handled_at, outcome, detail
		FROM handled_triggers
		ORDER BY handled_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			handledAt int64
			outcome   string
		)
		if err := rows.Scan(&e.ID, &e.Digest, &e.Name, &e.Action, &e.Timestamp, &handledAt, &outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.HandledAt = time.Unix(0, handledAt)
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Prune deletes entries handled before the cutoff and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM handled_triggers WHERE handled_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return n, nil
}
