package core

// identity.go correlates sheet rows with store records through opaque tokens.
//
// A token is assigned exactly once and never regenerated: it is the only thing
// that keeps row identity stable while humans reorder, insert, and delete
// rows between syncs.

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EnsureToken returns the record's identity token, generating and assigning a
// fresh one when the record has none.
func EnsureToken(rec *Record) string {
	if rec.Token == "" {
		rec.Token = uuid.NewString()
	}
	return rec.Token
}

// Identity resolves tokens against both sides of the sync.
type Identity struct {
	sheet SourceTransport
	store PullStore
}

// NewIdentity builds an Identity over the given collaborators.
func NewIdentity(sheet SourceTransport, store PullStore) *Identity {
	return &Identity{sheet: sheet, store: store}
}

// LocateRow scans the identity column for the row carrying the token.
// Returns 0 when no row does. Cost is proportional to sheet size.
func (id *Identity) LocateRow(ctx context.Context, identityCol int, token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	row, err := id.sheet.FindRowByToken(ctx, identityCol, token)
	if err != nil {
		return 0, fmt.Errorf("locate row by token: %w", err)
	}
	return row, nil
}

// ResolveBatch checks all tokens against the store in one round trip and
// returns token -> store record id for those that exist. Used to partition
// pull candidates into create and update sets.
func (id *Identity) ResolveBatch(ctx context.Context, tokens []string) (map[string]string, error) {
	filtered := tokens[:0:0]
	for _, t := range tokens {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return map[string]string{}, nil
	}

	resolved, err := id.store.GetByTokens(ctx, filtered)
	if err != nil {
		return nil, fmt.Errorf("resolve tokens: %w", err)
	}
	return resolved, nil
}
