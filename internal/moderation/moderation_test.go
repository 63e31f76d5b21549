package moderation

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct {
	rewrite    string
	rewriteErr error
	flagged    bool
	checkErr   error
}

func (s *stubClient) Rewrite(ctx context.Context, content string) (string, error) {
	return s.rewrite, s.rewriteErr
}

func (s *stubClient) Check(ctx context.Context, content string) (bool, error) {
	return s.flagged, s.checkErr
}

func (s *stubClient) Explain(ctx context.Context, stage, role string) (string, error) {
	return "", errors.New("not implemented")
}

func TestFilterCleanRewrite(t *testing.T) {
	client := &stubClient{rewrite: "Please could you confirm the completion date."}
	got := Filter(context.Background(), client, "WHERE IS MY COMPLETION DATE?!")
	if got.Flagged {
		t.Fatal("clean rewrite should not be flagged")
	}
	if got.Filtered != "Please could you confirm the completion date." {
		t.Fatalf("Filtered = %q", got.Filtered)
	}
}

func TestFilterRewriteFailureFallsBackToOriginal(t *testing.T) {
	client := &stubClient{rewriteErr: errors.New("boom")}
	got := Filter(context.Background(), client, "original text")
	if got.Flagged {
		t.Fatal("fallback should not be flagged")
	}
	if got.Filtered != UnavailablePrefix+"original text" {
		t.Fatalf("Filtered = %q", got.Filtered)
	}
}

func TestFilterFlaggedContentKeepsRewrite(t *testing.T) {
	client := &stubClient{rewrite: "rewritten", flagged: true}
	got := Filter(context.Background(), client, "original")
	if !got.Flagged {
		t.Fatal("expected flagged result")
	}
	if got.Filtered != FlaggedPrefix+"rewritten" {
		t.Fatalf("Filtered = %q", got.Filtered)
	}
}

func TestFilterCheckFailureLetsRewriteThrough(t *testing.T) {
	client := &stubClient{rewrite: "rewritten", checkErr: errors.New("boom")}
	got := Filter(context.Background(), client, "original")
	if got.Flagged {
		t.Fatal("check failure should not flag")
	}
	if got.Filtered != "rewritten" {
		t.Fatalf("Filtered = %q", got.Filtered)
	}
}

func TestFilterNilClient(t *testing.T) {
	got := Filter(context.Background(), nil, "hello")
	if got.Filtered != UnavailablePrefix+"hello" {
		t.Fatalf("Filtered = %q", got.Filtered)
	}
}
