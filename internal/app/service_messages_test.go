package app

import (
	"context"
	"errors"
	"testing"

	"conveyo/api/internal/moderation"
)

func TestSendPropertyMessageRunsFilter(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	svc.ai = &fakeModeration{
		rewrite: func(string) (string, error) { return "Could you please reconsider the price?", nil },
	}
	property, users := seedConveyance(fs)

	message, err := svc.SendPropertyMessage(context.Background(), sessionFor(users["buyer"]), property.ID, nil, "drop the price or I walk!!")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if message.ApprovalStatus != "pending" {
		t.Errorf("approval status %q, want pending", message.ApprovalStatus)
	}
	if message.OriginalContent != "drop the price or I walk!!" {
		t.Errorf("original content %q was altered", message.OriginalContent)
	}
	if message.FilteredContent != "Could you please reconsider the price?" {
		t.Errorf("filtered content %q", message.FilteredContent)
	}
	if message.ApprovedContent != nil {
		t.Error("pending message must not carry approved content")
	}
	if message.RecipientID == nil || *message.RecipientID != users["seller"].ID {
		t.Error("buyer's message should be addressed to the seller")
	}
}

func TestSendPropertyMessageFallsBackWhenRewriteFails(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	svc.ai = &fakeModeration{
		rewrite: func(string) (string, error) { return "", errors.New("model timeout") },
	}
	property, users := seedConveyance(fs)

	message, err := svc.SendPropertyMessage(context.Background(), sessionFor(users["seller"]), property.ID, nil, "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if message.FilteredContent != moderation.UnavailablePrefix+"hello" {
		t.Errorf("filtered content %q, want unavailable-prefixed original", message.FilteredContent)
	}
	if message.ApprovalStatus != "pending" {
		t.Errorf("filter failure must still queue the message, got %q", message.ApprovalStatus)
	}
}

func TestSendPropertyMessageMarksFlaggedContent(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	svc.ai = &fakeModeration{
		rewrite: func(string) (string, error) { return "rewritten", nil },
		check:   func(string) (bool, error) { return true, nil },
	}
	property, users := seedConveyance(fs)

	message, err := svc.SendPropertyMessage(context.Background(), sessionFor(users["buyer"]), property.ID, nil, "something nasty")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if message.FilteredContent != moderation.FlaggedPrefix+"rewritten" {
		t.Errorf("filtered content %q, want flagged-prefixed rewrite", message.FilteredContent)
	}
}

func TestSendPropertyMessageWithoutClientUsesUnavailablePrefix(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)

	message, err := svc.SendPropertyMessage(context.Background(), sessionFor(users["buyer"]), property.ID, nil, "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if message.FilteredContent != moderation.UnavailablePrefix+"hello" {
		t.Errorf("filtered content %q", message.FilteredContent)
	}
}

func TestSendPropertyMessageAgentForbidden(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)

	_, err := svc.SendPropertyMessage(context.Background(), sessionFor(users["estate_agent"]), property.ID, nil, "hello")
	assertDomainError(t, err, 403, "FORBIDDEN")
}

func TestApprovePropertyMessageCopiesChosenVersion(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	svc.ai = &fakeModeration{rewrite: func(string) (string, error) { return "polished", nil }}
	property, users := seedConveyance(fs)
	ctx := context.Background()
	agent := sessionFor(users["estate_agent"])

	sent, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "raw")
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := svc.ApprovePropertyMessage(ctx, agent, property.ID, sent.ID, "filtered")
	if err != nil {
		t.Fatalf("approve message: %v", err)
	}
	if resolved.ApprovalStatus != "approved" {
		t.Errorf("status %q, want approved", resolved.ApprovalStatus)
	}
	if resolved.ApprovedContent == nil || *resolved.ApprovedContent != "polished" {
		t.Errorf("approved content %v, want filtered version", resolved.ApprovedContent)
	}
	if resolved.ApprovedBy == nil || *resolved.ApprovedBy != agent.UserID {
		t.Error("approved_by should record the agent")
	}

	// A second buyer message approved as the original version.
	sent, err = svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "raw two")
	if err != nil {
		t.Fatal(err)
	}
	resolved, err = svc.ApprovePropertyMessage(ctx, agent, property.ID, sent.ID, "original")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.ApprovedContent == nil || *resolved.ApprovedContent != "raw two" {
		t.Errorf("approved content %v, want original version", resolved.ApprovedContent)
	}
}

func TestResolveMessageIsTerminal(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()
	agent := sessionFor(users["estate_agent"])

	sent, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "first")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApprovePropertyMessage(ctx, agent, property.ID, sent.ID, "filtered"); err != nil {
		t.Fatal(err)
	}

	// Neither a second approval nor a rejection may land.
	_, err = svc.ApprovePropertyMessage(ctx, agent, property.ID, sent.ID, "original")
	assertDomainError(t, err, 404, "NOT_FOUND")
	err = svc.RejectPropertyMessage(ctx, agent, property.ID, sent.ID)
	assertDomainError(t, err, 404, "NOT_FOUND")

	stored, _ := fs.GetMessage(ctx, sent.ID)
	if stored.ApprovalStatus != "approved" {
		t.Errorf("resolution was overwritten to %q", stored.ApprovalStatus)
	}
}

func TestRejectPropertyMessageClearsNothing(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	sent, err := svc.SendPropertyMessage(ctx, sessionFor(users["seller"]), property.ID, nil, "offer withdrawn")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RejectPropertyMessage(ctx, sessionFor(users["estate_agent"]), property.ID, sent.ID); err != nil {
		t.Fatalf("reject message: %v", err)
	}

	stored, _ := fs.GetMessage(ctx, sent.ID)
	if stored.ApprovalStatus != "rejected" {
		t.Errorf("status %q, want rejected", stored.ApprovalStatus)
	}
	if stored.ApprovedContent != nil {
		t.Error("rejected message must not carry approved content")
	}
}

func TestPendingMessagesAgentOnly(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	if _, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "hello"); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.PendingPropertyMessages(ctx, sessionFor(users["estate_agent"]), property.ID)
	if err != nil {
		t.Fatalf("pending messages: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	_, err = svc.PendingPropertyMessages(ctx, sessionFor(users["buyer"]), property.ID)
	assertDomainError(t, err, 403, "FORBIDDEN")
}

func TestListVisibleMessagesHidesOthersDrafts(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	if _, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "still pending"); err != nil {
		t.Fatal(err)
	}
	approved, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "released")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApprovePropertyMessage(ctx, sessionFor(users["estate_agent"]), property.ID, approved.ID, "filtered"); err != nil {
		t.Fatal(err)
	}

	// The seller sees only the approved message.
	visible, err := svc.ListVisibleMessages(ctx, sessionFor(users["seller"]), property.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != approved.ID {
		t.Fatalf("seller sees %d messages, want only the approved one", len(visible))
	}

	// The author sees both.
	visible, err = svc.ListVisibleMessages(ctx, sessionFor(users["buyer"]), property.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 2 {
		t.Fatalf("author sees %d messages, want 2", len(visible))
	}
}

func TestListPropertyMessagesAnnotatesBuyerSellerPairs(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	if _, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "to the seller"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SendDirectMessage(ctx, sessionFor(users["buyer_solicitor"]), users["buyer"].ID, property.ID, nil, "from your solicitor"); err != nil {
		t.Fatal(err)
	}

	views, err := svc.ListPropertyMessages(ctx, sessionFor(users["estate_agent"]), property.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(views))
	}
	for _, view := range views {
		wantPair := view.SenderID == users["buyer"].ID && view.RecipientID != nil && *view.RecipientID == users["seller"].ID
		if view.IsBuyerSellerMessage != wantPair {
			t.Errorf("message %d annotated %v, want %v", view.ID, view.IsBuyerSellerMessage, wantPair)
		}
	}
}

func TestSendDirectMessageLandsApproved(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)

	message, err := svc.SendDirectMessage(context.Background(), sessionFor(users["buyer_solicitor"]), users["buyer"].ID, property.ID, nil, "contracts ready")
	if err != nil {
		t.Fatalf("send direct message: %v", err)
	}
	if message.ApprovalStatus != "approved" {
		t.Errorf("status %q, want approved", message.ApprovalStatus)
	}
	if message.ApprovedContent == nil || *message.ApprovedContent != "contracts ready" {
		t.Error("direct messages carry their content as approved")
	}
}

func TestSendDirectMessageUnknownRecipient(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)

	_, err := svc.SendDirectMessage(context.Background(), sessionFor(users["buyer"]), 424242, property.ID, nil, "hello")
	assertDomainError(t, err, 404, "NOT_FOUND")
}

func TestApproveDirectMessageNotifiesBothParties(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	sent, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "hello")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ApproveDirectMessage(ctx, sessionFor(users["estate_agent"]), sent.ID); err != nil {
		t.Fatalf("approve direct: %v", err)
	}

	recipientNotifs, _ := fs.ListNotifications(ctx, users["seller"].ID, property.ID, false)
	if len(recipientNotifs) != 1 || recipientNotifs[0].Type != "message" {
		t.Errorf("recipient notifications %+v", recipientNotifs)
	}
	senderNotifs, _ := fs.ListNotifications(ctx, users["buyer"].ID, property.ID, false)
	if len(senderNotifs) != 1 || senderNotifs[0].Type != "delivered" {
		t.Errorf("sender notifications %+v", senderNotifs)
	}
}

func TestMessageStatusMirrorsApprovalStatus(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	sent, err := svc.SendPropertyMessage(ctx, sessionFor(users["buyer"]), property.ID, nil, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if sent.Status != sent.ApprovalStatus || sent.Status != "pending" {
		t.Errorf("status %q does not mirror approval status %q", sent.Status, sent.ApprovalStatus)
	}

	if _, err := svc.ApprovePropertyMessage(ctx, sessionFor(users["estate_agent"]), property.ID, sent.ID, "original"); err != nil {
		t.Fatalf("approve message: %v", err)
	}
	stored, _ := fs.GetMessage(ctx, sent.ID)
	if stored.Status != "approved" || stored.Status != stored.ApprovalStatus {
		t.Errorf("status %q, approval status %q, want both approved", stored.Status, stored.ApprovalStatus)
	}
}
