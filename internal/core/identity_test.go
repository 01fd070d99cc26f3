package core

import (
	"context"
	"testing"
)

func TestEnsureToken(t *testing.T) {
	rec := &Record{}
	tok := EnsureToken(rec)
	if tok == "" {
		t.Fatal("EnsureToken returned empty token")
	}
	if rec.Token != tok {
		t.Errorf("token not assigned onto record: %q vs %q", rec.Token, tok)
	}

	// A second call must never regenerate.
	if again := EnsureToken(rec); again != tok {
		t.Errorf("EnsureToken regenerated: %q then %q", tok, again)
	}

	existing := &Record{Token: "tok-existing"}
	if got := EnsureToken(existing); got != "tok-existing" {
		t.Errorf("EnsureToken(existing) = %q, want tok-existing", got)
	}
}

func TestEnsureToken_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tok := EnsureToken(&Record{})
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d generations: %q", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestIdentity_LocateRow(t *testing.T) {
	sheet := newFakeSheet([][]string{
		testHeader(),
		{"tok-a", "2025-03-01", "Lions", "Tigers"},
		{"tok-b", "2025-03-02", "Bears", "Wolves"},
	})
	id := NewIdentity(sheet, newFakeStore())

	row, err := id.LocateRow(context.Background(), 1, "tok-b")
	if err != nil {
		t.Fatalf("LocateRow error = %v", err)
	}
	if row != 3 {
		t.Errorf("LocateRow = %d, want 3", row)
	}

	row, err = id.LocateRow(context.Background(), 1, "tok-missing")
	if err != nil {
		t.Fatalf("LocateRow error = %v", err)
	}
	if row != 0 {
		t.Errorf("LocateRow(missing) = %d, want 0", row)
	}

	// Empty token must not scan at all.
	row, err = id.LocateRow(context.Background(), 1, "")
	if err != nil || row != 0 {
		t.Errorf("LocateRow(empty) = %d, %v; want 0, nil", row, err)
	}
}

func TestIdentity_ResolveBatch(t *testing.T) {
	store := newFakeStore()
	store.existing["tok-a"] = "id-a"
	store.existing["tok-c"] = "id-c"
	id := NewIdentity(newFakeSheet([][]string{testHeader()}), store)

	resolved, err := id.ResolveBatch(context.Background(), []string{"tok-a", "", "tok-b", "tok-c"})
	if err != nil {
		t.Fatalf("ResolveBatch error = %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved %d tokens, want 2: %v", len(resolved), resolved)
	}
	if resolved["tok-a"] != "id-a" || resolved["tok-c"] != "id-c" {
		t.Errorf("resolved = %v", resolved)
	}

	// All-empty input short-circuits without a store round trip.
	store.failGet = true
	resolved, err = id.ResolveBatch(context.Background(), []string{"", ""})
	if err != nil {
		t.Fatalf("ResolveBatch(empty) error = %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("ResolveBatch(empty) = %v, want empty map", resolved)
	}
}
