package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	if got := utils.CountTokens(""); got != 0 {
		t.Fatalf("empty text = %d tokens, want 0", got)
	}
	if got := utils.CountTokens("x"); got < 1 {
		t.Fatalf("non-empty text = %d tokens, want >= 1", got)
	}
	payload := strings.Repeat(`{"mean":4.25},`, 300)
	if got := utils.CountTokens(payload); got < 900 || got > 1200 {
		t.Fatalf("json payload = %d tokens, want ~1050", got)
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("column_stats ", 400)
	got := utils.TruncateToTokenLimit(text, 250)
	if n := utils.CountTokens(got); n > 250 {
		t.Fatalf("truncated text = %d tokens, want <= 250", n)
	}
	if len(got) == 0 {
		t.Fatal("expected a non-empty prefix")
	}
	if short := utils.TruncateToTokenLimit("tiny", 250); short != "tiny" {
		t.Fatalf("text under the limit was altered: %q", short)
	}
	if gone := utils.TruncateToTokenLimit(text, 0); gone != "" {
		t.Fatalf("zero limit kept %d chars", len(gone))
	}
}

func TestTokenBreakdown(t *testing.T) {
	bd := utils.TokenBreakdown(map[string]string{
		"summary":   strings.Repeat("s", 40),
		"anomalies": "",
	})
	if bd["summary"] != 10 {
		t.Fatalf("summary = %d tokens, want 10", bd["summary"])
	}
	if bd["anomalies"] != 0 {
		t.Fatalf("anomalies = %d tokens, want 0", bd["anomalies"])
	}
}
