package mention

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLedgerRecordAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mention_memory.json")

	ledger, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	entry := Entry{
		Text:          "@MintRelay mint to 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		Status:        StatusProcessed,
		MintSucceeded: true,
		TxHash:        "0xdeadbeef",
		MintedAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		Author:        Author{Handle: "alice", ID: "42"},
	}
	if err := ledger.Record(ctx, "1001", entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.AdvanceCheckpoint(ctx, "1001"); err != nil {
		t.Fatalf("advance checkpoint: %v", err)
	}

	// Terminal entries must never be overwritten.
	if err := ledger.Record(ctx, "1001", entry); !stdErrors.Is(err, ErrMentionProcessed) {
		t.Fatalf("expected ErrMentionProcessed, got %v", err)
	}

	// Reopen from disk and verify everything survived.
	reopened, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	processed, err := reopened.IsProcessed(ctx, "1001")
	if err != nil || !processed {
		t.Fatalf("expected mention to be processed after reload, got %v %v", processed, err)
	}
	checkpoint, err := reopened.Checkpoint(ctx)
	if err != nil || checkpoint != "1001" {
		t.Fatalf("unexpected checkpoint after reload: %q %v", checkpoint, err)
	}
	got, err := reopened.Get(ctx, "1001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusProcessed || !got.MintSucceeded || got.TxHash != "0xdeadbeef" {
		t.Fatalf("unexpected entry after reload: %+v", got)
	}
}

func TestFileLedgerPersistedFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")

	ledger, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := ledger.Record(ctx, "7", Entry{Text: "x", Status: StatusZeroBalance, Author: Author{ID: "1", Handle: "bob"}}); err != nil {
		t.Fatalf("record: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var state struct {
		Mentions    map[string]json.RawMessage `json:"mentions"`
		LastTweetID *string                    `json:"last_tweet_id"`
	}
	if err := json.Unmarshal(content, &state); err != nil {
		t.Fatalf("parse state file: %v", err)
	}
	if _, ok := state.Mentions["7"]; !ok {
		t.Fatalf("mention 7 missing from state file: %s", content)
	}
	if state.LastTweetID != nil {
		t.Fatalf("expected null last_tweet_id before first advance, got %q", *state.LastTweetID)
	}
}

func TestFileLedgerCheckpointMonotonic(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	steps := []string{"5", "12", "9", "12", "100"}
	want := []string{"5", "12", "12", "12", "100"}
	for i, id := range steps {
		if err := ledger.AdvanceCheckpoint(ctx, id); err != nil {
			t.Fatalf("advance to %s: %v", id, err)
		}
		checkpoint, err := ledger.Checkpoint(ctx)
		if err != nil {
			t.Fatalf("checkpoint: %v", err)
		}
		if checkpoint != want[i] {
			t.Fatalf("step %d: expected checkpoint %s, got %s", i, want[i], checkpoint)
		}
	}
}

func TestFileLedgerMintingOverwrite(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	provisional := Entry{Text: "x", Status: StatusMinting, Author: Author{ID: "9", Handle: "carol"}}
	if err := ledger.Record(ctx, "55", provisional); err != nil {
		t.Fatalf("record provisional: %v", err)
	}
	if ids := ledger.Pending(); len(ids) != 1 || ids[0] != "55" {
		t.Fatalf("expected pending [55], got %v", ids)
	}

	terminal := provisional
	terminal.Status = StatusProcessed
	terminal.MintSucceeded = true
	terminal.MintedAddress = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	if err := ledger.Record(ctx, "55", terminal); err != nil {
		t.Fatalf("record terminal over provisional: %v", err)
	}
	if ids := ledger.Pending(); len(ids) != 0 {
		t.Fatalf("expected no pending entries, got %v", ids)
	}
	if err := ledger.Record(ctx, "55", provisional); !stdErrors.Is(err, ErrMentionProcessed) {
		t.Fatalf("terminal entry was overwritten: %v", err)
	}
}

func TestFindPriorMintCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	entry := Entry{
		Text:          "mint",
		Status:        StatusProcessed,
		MintSucceeded: true,
		MintedAddress: "0xAB5801A7D398351B8BE11C439E05C5B3259AEC9B",
		Author:        Author{ID: "42", Handle: "alice"},
	}
	if err := ledger.Record(ctx, "1", entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	failed := Entry{Text: "mint", Status: StatusMintFailed, Author: Author{ID: "77", Handle: "dave"}}
	if err := ledger.Record(ctx, "2", failed); err != nil {
		t.Fatalf("record failed entry: %v", err)
	}

	if _, found, _ := ledger.FindPriorMint(ctx, "42", ""); !found {
		t.Fatal("expected match by author id")
	}
	if _, found, _ := ledger.FindPriorMint(ctx, "", "0xab5801a7d398351b8be11c439e05c5b3259aec9b"); !found {
		t.Fatal("expected case-insensitive match by address")
	}
	if _, found, _ := ledger.FindPriorMint(ctx, "77", ""); found {
		t.Fatal("failed mints must not count as prior mints")
	}
	if _, found, _ := ledger.FindPriorMint(ctx, "999", "0x0000000000000000000000000000000000000000"); found {
		t.Fatal("unexpected match")
	}
}

func TestMemoryLedgerStats(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	entries := map[string]Entry{
		"1": {Text: "a", Status: StatusProcessed, MintSucceeded: true, Author: Author{ID: "1"}},
		"2": {Text: "b", Status: StatusZeroBalance, Author: Author{ID: "2"}},
		"3": {Text: "c", Status: StatusDuplicate, Author: Author{ID: "3"}},
	}
	for id, entry := range entries {
		if err := ledger.Record(ctx, id, entry); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	stats, err := ledger.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Processed != 1 || stats.ZeroBalance != 1 || stats.Duplicate != 1 || stats.MintSucceeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	succeeded, err := ledger.List(ctx, BuildListOptions(WithMintSuccess(true)))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(succeeded) != 1 || succeeded[0].ID != "1" {
		t.Fatalf("unexpected mint-success list: %+v", succeeded)
	}
}

func TestCompareID(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"100", "100", 0},
		{"1857479287504584856", "1857479287504584857", -1},
	}
	for _, tc := range cases {
		if got := CompareID(tc.a, tc.b); got != tc.want {
			t.Fatalf("CompareID(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
