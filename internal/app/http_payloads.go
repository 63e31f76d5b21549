package app

import (
	"time"

	"conveyo/api/internal/store"
)

// Payload builders keep the wire shape in one place: IDs are serialized as
// strings so 64-bit values survive JavaScript clients.

func optionalIDString(id *int64) any {
	if id == nil {
		return nil
	}
	return idString(*id)
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func propertyPayload(p store.Property) map[string]any {
	return map[string]any{
		"id":           idString(p.ID),
		"address":      p.Address,
		"postcode":     p.Postcode,
		"price":        p.Price,
		"status":       p.Status,
		"propertyType": p.PropertyType,
		"bedrooms":     p.Bedrooms,
		"bathrooms":    p.Bathrooms,
		"tenure":       p.Tenure,
		"description":  p.Description,

		"buyerId":           optionalIDString(p.BuyerID),
		"sellerId":          optionalIDString(p.SellerID),
		"buyerSolicitorId":  optionalIDString(p.BuyerSolicitorID),
		"sellerSolicitorId": optionalIDString(p.SellerSolicitorID),
		"estateAgentId":     optionalIDString(p.EstateAgentID),

		"timelineLocked":          p.TimelineLocked,
		"buyerSolicitorApproved":  p.BuyerSolicitorApproved,
		"sellerSolicitorApproved": p.SellerSolicitorApproved,

		"createdAt": p.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func propertyPayloads(items []store.Property) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, propertyPayload(item))
	}
	return out
}

func stagePayload(s store.Stage) map[string]any {
	return map[string]any{
		"id":              idString(s.ID),
		"propertyId":      idString(s.PropertyID),
		"name":            s.Name,
		"status":          s.Status,
		"description":     s.Description,
		"responsibleRole": s.ResponsibleRole,
		"order":           s.SortOrder,
		"startDate":       optionalTime(s.StartDate),
		"dueDate":         optionalTime(s.DueDate),
		"completedAt":     optionalTime(s.CompletedAt),
		"createdAt":       s.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func stagePayloads(items []store.Stage) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, stagePayload(item))
	}
	return out
}

func messagePayload(m store.Message) map[string]any {
	return map[string]any{
		"id":              idString(m.ID),
		"propertyId":      idString(m.PropertyID),
		"stageId":         optionalIDString(m.StageID),
		"senderId":        idString(m.SenderID),
		"recipientId":     optionalIDString(m.RecipientID),
		"originalContent": m.OriginalContent,
		"filteredContent": m.FilteredContent,
		"approvedContent": m.ApprovedContent,
		"approvalStatus":  m.ApprovalStatus,
		"status":          m.Status,
		"approvedBy":      optionalIDString(m.ApprovedBy),
		"approvedAt":      optionalTime(m.ApprovedAt),
		"createdAt":       m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func messagePayloads(items []store.Message) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, messagePayload(item))
	}
	return out
}

func messageViewPayload(v MessageView) map[string]any {
	payload := messagePayload(v.Message)
	payload["isBuyerSellerMessage"] = v.IsBuyerSellerMessage
	return payload
}

func messageViewPayloads(items []MessageView) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, messageViewPayload(item))
	}
	return out
}

func notificationPayload(n store.Notification) map[string]any {
	return map[string]any{
		"id":         idString(n.ID),
		"userId":     idString(n.UserID),
		"propertyId": optionalIDString(n.PropertyID),
		"type":       n.Type,
		"message":    n.Message,
		"read":       n.Read,
		"createdAt":  n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func notificationPayloads(items []store.Notification) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, notificationPayload(item))
	}
	return out
}

func documentPayload(d store.Document) map[string]any {
	return map[string]any{
		"id":           idString(d.ID),
		"propertyId":   idString(d.PropertyID),
		"uploadedBy":   idString(d.UploadedBy),
		"filename":     d.OriginalFilename,
		"documentType": d.DocumentType,
		"size":         d.Size,
		"reviewStatus": d.ReviewStatus,
		"reviewedBy":   optionalIDString(d.ReviewedBy),
		"reviewedAt":   optionalTime(d.ReviewedAt),
		"uploadedAt":   d.UploadedAt.UTC().Format(time.RFC3339),
	}
}

func documentPayloads(items []store.Document) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, documentPayload(item))
	}
	return out
}
