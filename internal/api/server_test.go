package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"MintRelay/internal/mention"
)

func seedLedger(t *testing.T) *mention.MemoryLedger {
	t.Helper()
	ledger := mention.NewMemoryLedger()
	ctx := context.Background()

	entries := map[string]mention.Entry{
		"1": {Text: "mint to 0xaaa", Status: mention.StatusProcessed, MintSucceeded: true, TxHash: "0x1", Author: mention.Author{Handle: "a", ID: "u1"}, ProcessedAt: 10},
		"2": {Text: "mint to 0xbbb", Status: mention.StatusZeroBalance, Author: mention.Author{Handle: "b", ID: "u2"}, ProcessedAt: 20},
	}
	for id, entry := range entries {
		if err := ledger.Record(ctx, id, entry); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}
	if err := ledger.AdvanceCheckpoint(ctx, "2"); err != nil {
		t.Fatalf("AdvanceCheckpoint: %v", err)
	}
	return ledger
}

func TestListMentionsFiltersByStatus(t *testing.T) {
	server := NewServer(":0", seedLedger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mentions?status=processed", nil)
	rec := httptest.NewRecorder()
	server.handleListMentions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Mentions []mention.Recorded `json:"mentions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Mentions) != 1 || payload.Mentions[0].ID != "1" {
		t.Fatalf("mentions = %+v", payload.Mentions)
	}
}

func TestListMentionsRejectsUnknownStatus(t *testing.T) {
	server := NewServer(":0", seedLedger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mentions?status=bogus", nil)
	rec := httptest.NewRecorder()
	server.handleListMentions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatsIncludesCheckpoint(t *testing.T) {
	server := NewServer(":0", seedLedger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mentions/stats", nil)
	rec := httptest.NewRecorder()
	server.handleStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var payload struct {
		Stats       mention.LedgerStats `json:"stats"`
		LastTweetID string              `json:"last_tweet_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Stats.Total != 2 || payload.Stats.MintSucceeded != 1 {
		t.Fatalf("stats = %+v", payload.Stats)
	}
	if payload.LastTweetID != "2" {
		t.Fatalf("last_tweet_id = %q", payload.LastTweetID)
	}
}

func TestGetMention(t *testing.T) {
	server := NewServer(":0", seedLedger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mentions/1", nil)
	rec := httptest.NewRecorder()
	server.handleGetMention(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var record mention.Recorded
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.ID != "1" || record.TxHash != "0x1" {
		t.Fatalf("record = %+v", record)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/mentions/404", nil)
	rec = httptest.NewRecorder()
	server.handleGetMention(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing mention status = %d, want 404", rec.Code)
	}
}
