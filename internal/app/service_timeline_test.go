package app

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreatePropertySeedsPresetTimeline(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	agent := fs.addUser("estate_agent", "Eamon")

	property, err := svc.CreateProperty(context.Background(), sessionFor(agent), CreatePropertyInput{
		Address:       "1 High Street",
		Postcode:      "AB1 2CD",
		EstateAgentID: idRef(agent.ID),
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}

	stages, err := svc.ListStages(context.Background(), sessionFor(agent), property.ID)
	if err != nil {
		t.Fatalf("list stages: %v", err)
	}
	if len(stages) != len(presetStages) {
		t.Fatalf("expected %d preset stages, got %d", len(presetStages), len(stages))
	}
	for i, stage := range stages {
		if stage.SortOrder != i {
			t.Errorf("stage %q at position %d, want %d", stage.Name, stage.SortOrder, i)
		}
		if stage.Status != "pending" {
			t.Errorf("stage %q status %q, want pending", stage.Name, stage.Status)
		}
	}
	if stages[0].Name != "Offer Accepted" {
		t.Errorf("first stage %q, want Offer Accepted", stages[0].Name)
	}
	if property.TimelineLocked {
		t.Error("new property should start unlocked")
	}
}

func TestCreatePropertyRequiresEstateAgent(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	buyer := fs.addUser("buyer", "Beatrice")

	_, err := svc.CreateProperty(context.Background(), sessionFor(buyer), CreatePropertyInput{
		Address:  "1 High Street",
		Postcode: "AB1 2CD",
	})
	assertDomainError(t, err, 403, "FORBIDDEN")
}

func TestCreatePropertyRejectsMismatchedAssignment(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	agent := fs.addUser("estate_agent", "Eamon")
	seller := fs.addUser("seller", "Selina")

	_, err := svc.CreateProperty(context.Background(), sessionFor(agent), CreatePropertyInput{
		Address:  "1 High Street",
		Postcode: "AB1 2CD",
		BuyerID:  idRef(seller.ID),
	})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")
}

func TestDeleteStageKeepsPositionsDense(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	solicitor := sessionFor(users["buyer_solicitor"])

	stages, _ := fs.ListStages(context.Background(), property.ID)
	middle := stages[3]

	if _, err := svc.DeleteStage(context.Background(), solicitor, property.ID, middle.ID); err != nil {
		t.Fatalf("delete stage: %v", err)
	}

	remaining, _ := fs.ListStages(context.Background(), property.ID)
	if len(remaining) != len(stages)-1 {
		t.Fatalf("expected %d stages after delete, got %d", len(stages)-1, len(remaining))
	}
	for i, stage := range remaining {
		if stage.SortOrder != i {
			t.Errorf("stage %q at position %d, want %d", stage.Name, stage.SortOrder, i)
		}
		if stage.ID == middle.ID {
			t.Errorf("deleted stage %q still present", stage.Name)
		}
	}
}

func TestDeleteStageRequiresSolicitor(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)

	stages, _ := fs.ListStages(context.Background(), property.ID)
	_, err := svc.DeleteStage(context.Background(), sessionFor(users["buyer"]), property.ID, stages[0].ID)
	assertDomainError(t, err, 403, "FORBIDDEN")
}

func TestCreateStageAtPositionShiftsLaterStages(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	solicitor := sessionFor(users["buyer_solicitor"])

	position := 2
	created, err := svc.CreateStage(context.Background(), solicitor, property.ID, CreateStageInput{
		Name:     "Gas Safety Check",
		Position: &position,
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}
	if created.SortOrder != 2 {
		t.Fatalf("created stage at position %d, want 2", created.SortOrder)
	}

	stages, _ := fs.ListStages(context.Background(), property.ID)
	if len(stages) != len(presetStages)+1 {
		t.Fatalf("expected %d stages, got %d", len(presetStages)+1, len(stages))
	}
	for i, stage := range stages {
		if stage.SortOrder != i {
			t.Errorf("stage %q at position %d, want %d", stage.Name, stage.SortOrder, i)
		}
	}
	if stages[2].Name != "Gas Safety Check" {
		t.Errorf("position 2 holds %q, want Gas Safety Check", stages[2].Name)
	}
}

func TestReorderStagesRejectsPartialSet(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	solicitor := sessionFor(users["buyer_solicitor"])

	stages, _ := fs.ListStages(context.Background(), property.ID)
	ids := make([]int64, 0, len(stages)-1)
	for _, stage := range stages[1:] {
		ids = append(ids, stage.ID)
	}

	err := svc.ReorderStages(context.Background(), solicitor, property.ID, ids)
	assertDomainError(t, err, 400, "INVALID_STATE")

	// Duplicated id in place of a missing one must fail too.
	ids = append(ids, ids[0])
	err = svc.ReorderStages(context.Background(), solicitor, property.ID, ids)
	assertDomainError(t, err, 400, "INVALID_STATE")
}

func TestReorderStagesAppliesPermutation(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	solicitor := sessionFor(users["seller_solicitor"])

	stages, _ := fs.ListStages(context.Background(), property.ID)
	ids := make([]int64, len(stages))
	for i, stage := range stages {
		ids[i] = stage.ID
	}
	// Swap the first two stages.
	ids[0], ids[1] = ids[1], ids[0]

	if err := svc.ReorderStages(context.Background(), solicitor, property.ID, ids); err != nil {
		t.Fatalf("reorder stages: %v", err)
	}

	reordered, _ := fs.ListStages(context.Background(), property.ID)
	if reordered[0].ID != ids[0] || reordered[1].ID != ids[1] {
		t.Error("swap was not applied")
	}
	for i, stage := range reordered {
		if stage.SortOrder != i {
			t.Errorf("stage %q at position %d, want %d", stage.Name, stage.SortOrder, i)
		}
	}
}

func TestApproveTimelineLocksAfterBothSides(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	updated, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, "")
	if err != nil {
		t.Fatalf("buyer side approval: %v", err)
	}
	if !updated.BuyerSolicitorApproved || updated.TimelineLocked {
		t.Fatalf("after one approval: buyerApproved=%v locked=%v", updated.BuyerSolicitorApproved, updated.TimelineLocked)
	}

	updated, err = svc.ApproveTimeline(ctx, sessionFor(users["seller_solicitor"]), property.ID, "")
	if err != nil {
		t.Fatalf("seller side approval: %v", err)
	}
	if !updated.TimelineLocked {
		t.Error("both sides approved but timeline not locked")
	}
}

func TestApproveTimelineOncePerSide(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()
	buyerSol := sessionFor(users["buyer_solicitor"])

	if _, err := svc.ApproveTimeline(ctx, buyerSol, property.ID, ""); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	_, err := svc.ApproveTimeline(ctx, buyerSol, property.ID, "")
	assertDomainError(t, err, 400, "INVALID_STATE")
	if !strings.Contains(domainMessage(err), "Buyer solicitor has already approved") {
		t.Errorf("unexpected message %q", domainMessage(err))
	}
}

func TestApproveTimelineRejectedWhenLocked(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["seller_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}

	_, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, "")
	assertDomainError(t, err, 400, "INVALID_STATE")
	if !strings.Contains(domainMessage(err), "already locked") {
		t.Errorf("unexpected message %q", domainMessage(err))
	}
}

func TestApproveTimelineCommentNotifiesOtherSolicitor(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)

	_, err := svc.ApproveTimeline(context.Background(), sessionFor(users["buyer_solicitor"]), property.ID, "Looks good to proceed")
	if err != nil {
		t.Fatalf("approve with comment: %v", err)
	}

	notifs, _ := fs.ListNotifications(context.Background(), users["seller_solicitor"].ID, property.ID, false)
	if len(notifs) != 1 {
		t.Fatalf("expected 1 notification for seller solicitor, got %d", len(notifs))
	}
	if notifs[0].Type != "timeline_approval" {
		t.Errorf("notification type %q, want timeline_approval", notifs[0].Type)
	}
	if !strings.Contains(notifs[0].Message, "Looks good to proceed") {
		t.Errorf("notification message %q missing comment", notifs[0].Message)
	}
}

func TestLockedTimelineBlocksStructuralChanges(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["seller_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}

	stages, _ := fs.ListStages(ctx, property.ID)
	solicitor := sessionFor(users["buyer_solicitor"])

	_, err := svc.DeleteStage(ctx, solicitor, property.ID, stages[0].ID)
	assertDomainError(t, err, 400, "INVALID_STATE")

	ids := make([]int64, len(stages))
	for i, stage := range stages {
		ids[i] = stage.ID
	}
	err = svc.ReorderStages(ctx, solicitor, property.ID, ids)
	assertDomainError(t, err, 400, "INVALID_STATE")
}

func TestUnlockTimelineClearsApprovals(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["seller_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UnlockTimeline(ctx, sessionFor(users["seller_solicitor"]), property.ID)
	if err != nil {
		t.Fatalf("unlock timeline: %v", err)
	}
	if updated.TimelineLocked || updated.BuyerSolicitorApproved || updated.SellerSolicitorApproved {
		t.Error("unlock left stale flags")
	}

	// Both sides can approve again after an unlock.
	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, ""); err != nil {
		t.Errorf("re-approval after unlock: %v", err)
	}
}

func TestUpdateStageCompletionAdvancesNextPending(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()
	solicitor := sessionFor(users["buyer_solicitor"])

	stages, _ := fs.ListStages(ctx, property.ID)
	first := stages[0]

	status := "completed"
	updated, err := svc.UpdateStage(ctx, solicitor, property.ID, first.ID, UpdateStageInput{Status: &status})
	if err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if updated.Status != "completed" || updated.CompletedAt == nil {
		t.Fatalf("stage not completed: status=%q completedAt=%v", updated.Status, updated.CompletedAt)
	}

	after, _ := fs.ListStages(ctx, property.ID)
	// Preset ids are time-ordered, so the next pending stage is the second.
	if after[1].Status != "in-progress" {
		t.Errorf("next stage status %q, want in-progress", after[1].Status)
	}
	if after[1].StartDate == nil {
		t.Error("promoted stage has no start date")
	}

	notifs, _ := fs.ListNotifications(ctx, users["buyer"].ID, property.ID, true)
	if len(notifs) != 1 || notifs[0].Type != "stage_completed" {
		t.Fatalf("expected one stage_completed notification for the buyer, got %+v", notifs)
	}
}

func TestUpdateStageCompletionSkipsEarlierPendingStages(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()
	solicitor := sessionFor(users["buyer_solicitor"])

	stages, _ := fs.ListStages(ctx, property.ID)
	mid := stages[5]

	status := "completed"
	if _, err := svc.UpdateStage(ctx, solicitor, property.ID, mid.ID, UpdateStageInput{Status: &status}); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	after, _ := fs.ListStages(ctx, property.ID)
	// Earlier pending stages stay untouched; only the stage with the lowest
	// id above the completed one is promoted.
	for _, stage := range after[:5] {
		if stage.Status != "pending" {
			t.Errorf("earlier stage %q status %q, want pending", stage.Name, stage.Status)
		}
	}
	if after[6].Status != "in-progress" {
		t.Errorf("stage %q status %q, want in-progress", after[6].Name, after[6].Status)
	}
	for _, stage := range after[7:] {
		if stage.Status != "pending" {
			t.Errorf("later stage %q status %q, want pending", stage.Name, stage.Status)
		}
	}
}

func TestUpdateStageRejectsUnderscoreStatus(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	stages, _ := fs.ListStages(ctx, property.ID)
	status := "in_progress"
	_, err := svc.UpdateStage(ctx, sessionFor(users["buyer_solicitor"]), property.ID, stages[0].ID, UpdateStageInput{Status: &status})
	assertDomainError(t, err, 422, "VALIDATION_ERROR")

	status = "in-progress"
	updated, err := svc.UpdateStage(ctx, sessionFor(users["buyer_solicitor"]), property.ID, stages[0].ID, UpdateStageInput{Status: &status})
	if err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if updated.Status != "in-progress" {
		t.Errorf("stage status %q, want in-progress", updated.Status)
	}
}

func TestCompleteStageDoesNotAdvance(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	stages, _ := fs.ListStages(ctx, property.ID)
	completed, err := svc.CompleteStage(ctx, sessionFor(users["buyer"]), property.ID, stages[0].ID)
	if err != nil {
		t.Fatalf("complete stage: %v", err)
	}
	if completed.Status != "completed" {
		t.Fatalf("stage status %q, want completed", completed.Status)
	}

	after, _ := fs.ListStages(ctx, property.ID)
	for _, stage := range after[1:] {
		if stage.Status != "pending" {
			t.Errorf("stage %q status %q, want pending", stage.Name, stage.Status)
		}
	}
}

func TestResetStagesRevertsTimeline(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	property, users := seedConveyance(fs)
	ctx := context.Background()

	stages, _ := fs.ListStages(ctx, property.ID)
	if _, err := svc.CompleteStage(ctx, sessionFor(users["buyer"]), property.ID, stages[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["buyer_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveTimeline(ctx, sessionFor(users["seller_solicitor"]), property.ID, ""); err != nil {
		t.Fatal(err)
	}

	if err := svc.ResetStages(ctx, sessionFor(users["estate_agent"]), property.ID); err != nil {
		t.Fatalf("reset stages: %v", err)
	}

	after, _ := fs.ListStages(ctx, property.ID)
	for _, stage := range after {
		if stage.Status != "pending" || stage.CompletedAt != nil || stage.StartDate != nil {
			t.Errorf("stage %q not reset: %+v", stage.Name, stage)
		}
	}
	prop, _ := fs.GetProperty(ctx, property.ID)
	if prop.TimelineLocked || prop.BuyerSolicitorApproved || prop.SellerSolicitorApproved {
		t.Error("reset left timeline flags set")
	}
}

func assertDomainError(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if de.Status != status || de.Code != code {
		t.Fatalf("got %d %s (%s), want %d %s", de.Status, de.Code, de.Message, status, code)
	}
}

func domainMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
