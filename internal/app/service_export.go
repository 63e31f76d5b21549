package app

import (
	"context"
	"time"

	"conveyo/api/internal/export"
	"conveyo/api/internal/rbac"
)

// ExportTimeline renders the property's timeline and approved correspondence
// as a downloadable report.
func (s *Service) ExportTimeline(ctx context.Context, session Session, propertyID int64, format export.Format) (*export.Result, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpExportTimeline)
	if err != nil {
		return nil, err
	}

	stages, err := s.store.ListStages(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	report := export.Report{
		Address:     prop.Address,
		Postcode:    prop.Postcode,
		Price:       prop.Price,
		Status:      prop.Status,
		Locked:      prop.TimelineLocked,
		GeneratedAt: time.Now(),
	}

	for _, stage := range stages {
		report.Stages = append(report.Stages, export.ReportStage{
			Position:        stage.SortOrder,
			Name:            stage.Name,
			Status:          stage.Status,
			Description:     stage.Description,
			ResponsibleRole: stage.ResponsibleRole,
			DueDate:         stage.DueDate,
			CompletedAt:     stage.CompletedAt,
		})
	}

	names := map[int64]string{}
	for _, message := range messages {
		if message.ApprovalStatus != "approved" || message.ApprovedContent == nil {
			continue
		}
		report.Messages = append(report.Messages, export.ReportMessage{
			Sender:  s.senderName(ctx, names, message.SenderID),
			Content: *message.ApprovedContent,
			SentAt:  message.CreatedAt,
		})
	}

	return s.exporter.Export(report, format)
}

func (s *Service) senderName(ctx context.Context, cache map[int64]string, userID int64) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := "Unknown"
	if user, err := s.store.GetUserByID(ctx, userID); err == nil {
		name = displayName(user)
	}
	cache[userID] = name
	return name
}
