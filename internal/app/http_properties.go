package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"conveyo/api/internal/export"
)

// routeProperties dispatches everything under /api/properties. parts holds
// the path segments after "properties".
func (s *HTTPServer) routeProperties(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListProperties(r.Context(), session)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"properties": propertyPayloads(items)})
		case http.MethodPost:
			s.handleCreateProperty(w, r, session)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	propertyID, err := parseID(parts[0])
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			property, err := s.service.GetProperty(r.Context(), session, propertyID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, propertyPayload(property))
		case http.MethodPatch:
			s.handleUpdateProperty(w, r, session, propertyID)
		case http.MethodDelete:
			if err := s.service.DeleteProperty(r.Context(), session, propertyID); err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch parts[1] {
	case "stages":
		s.routeStages(w, r, session, propertyID, parts[2:])
	case "pending-messages":
		if len(parts) == 2 && r.Method == http.MethodGet {
			items, err := s.service.PendingPropertyMessages(r.Context(), session, propertyID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"messages": messagePayloads(items)})
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case "messages":
		s.routePropertyMessages(w, r, session, propertyID, parts[2:])
	case "timeline-approval":
		if len(parts) == 2 && r.Method == http.MethodPost {
			var body struct {
				Comment string `json:"comment"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			property, err := s.service.ApproveTimeline(r.Context(), session, propertyID, body.Comment)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, propertyPayload(property))
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case "unlock-timeline":
		if len(parts) == 2 && r.Method == http.MethodPost {
			property, err := s.service.UnlockTimeline(r.Context(), session, propertyID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, propertyPayload(property))
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case "reset-stages":
		if len(parts) == 2 && r.Method == http.MethodPost {
			if err := s.service.ResetStages(r.Context(), session, propertyID); err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"message": "Stages reset and timeline unlocked"})
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case "notifications":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		unreadOnly := len(parts) == 2
		if len(parts) == 3 && parts[2] != "all" {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		items, err := s.service.PropertyNotifications(r.Context(), session, propertyID, unreadOnly)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": notificationPayloads(items)})
	case "documents":
		s.routeDocuments(w, r, session, propertyID, parts[2:])
	case "export":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleExport(w, r, session, propertyID)
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeStages(w http.ResponseWriter, r *http.Request, session Session, propertyID int64, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListStages(r.Context(), session, propertyID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"stages": stagePayloads(items)})
		case http.MethodPost:
			s.handleCreateStage(w, r, session, propertyID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if parts[0] == "reorder" && len(parts) == 1 {
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			StageIDs []string `json:"stageIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ids := make([]int64, 0, len(body.StageIDs))
		for _, raw := range body.StageIDs {
			id, err := parseID(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stageIds must be integers", nil)
				return
			}
			ids = append(ids, id)
		}
		if err := s.service.ReorderStages(r.Context(), session, propertyID, ids); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Stages reordered successfully"})
		return
	}

	stageID, err := parseID(parts[0])
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPatch:
			s.handleUpdateStage(w, r, session, propertyID, stageID)
		case http.MethodDelete:
			stage, err := s.service.DeleteStage(r.Context(), session, propertyID, stageID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, stagePayload(stage))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "complete" && r.Method == http.MethodPost {
		stage, err := s.service.CompleteStage(r.Context(), session, propertyID, stageID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Stage completed successfully", "stage": stagePayload(stage)})
		return
	}

	if len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost {
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		message, err := s.service.SendPropertyMessage(r.Context(), session, propertyID, &stageID, body.Content)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Message sent for agent approval",
			"id":      idString(message.ID),
		})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routePropertyMessages(w http.ResponseWriter, r *http.Request, session Session, propertyID int64, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodGet {
		items, err := s.service.ListPropertyMessages(r.Context(), session, propertyID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messageViewPayloads(items)})
		return
	}

	if len(parts) == 2 {
		messageID, err := parseID(parts[0])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}

		if parts[1] == "approve" && r.Method == http.MethodPost {
			var body struct {
				Version string `json:"version"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			message, err := s.service.ApprovePropertyMessage(r.Context(), session, propertyID, messageID, body.Version)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message":         "Message approved and delivered",
				"approvedContent": message.ApprovedContent,
			})
			return
		}

		if parts[1] == "reject" && r.Method == http.MethodPost {
			if err := s.service.RejectPropertyMessage(r.Context(), session, propertyID, messageID); err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"message": "Message rejected"})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// routeLegacyMessages dispatches the legacy flow under /api/messages.
func (s *HTTPServer) routeLegacyMessages(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 && parts[0] == "send" && r.Method == http.MethodPost {
		var body struct {
			RecipientID string  `json:"recipientId"`
			PropertyID  string  `json:"propertyId"`
			StageID     *string `json:"stageId"`
			Content     string  `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		recipientID, err := parseID(body.RecipientID)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "recipientId must be an integer", nil)
			return
		}
		propertyID, err := parseID(body.PropertyID)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "propertyId must be an integer", nil)
			return
		}
		var stageID *int64
		if body.StageID != nil {
			parsed, err := parseID(*body.StageID)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stageId must be an integer", nil)
				return
			}
			stageID = &parsed
		}
		message, err := s.service.SendDirectMessage(r.Context(), session, recipientID, propertyID, stageID, body.Content)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Message sent successfully.",
			"id":      idString(message.ID),
		})
		return
	}

	if len(parts) == 2 && parts[0] == "property" && r.Method == http.MethodGet {
		propertyID, err := parseID(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		items, err := s.service.ListVisibleMessages(r.Context(), session, propertyID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messagePayloads(items)})
		return
	}

	if len(parts) == 2 && parts[0] == "pending" && r.Method == http.MethodGet {
		propertyID, err := parseID(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		items, err := s.service.PendingPropertyMessages(r.Context(), session, propertyID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messagePayloads(items)})
		return
	}

	if len(parts) == 2 && parts[0] == "approve" && r.Method == http.MethodPost {
		messageID, err := parseID(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if _, err := s.service.ApproveDirectMessage(r.Context(), session, messageID); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Message approved and delivered."})
		return
	}

	if len(parts) == 2 && parts[0] == "reject" && r.Method == http.MethodPost {
		messageID, err := parseID(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if err := s.service.RejectDirectMessage(r.Context(), session, messageID); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Message rejected."})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeDocuments(w http.ResponseWriter, r *http.Request, session Session, propertyID int64, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListPropertyDocuments(r.Context(), session, propertyID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": documentPayloads(items)})
		case http.MethodPost:
			s.handleUploadDocument(w, r, session, propertyID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 2 {
		documentID, err := parseID(parts[0])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}

		if parts[1] == "download" && r.Method == http.MethodGet {
			url, err := s.service.DocumentDownloadURL(r.Context(), session, propertyID, documentID)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"url": url, "expiresIn": int((15 * time.Minute).Seconds())})
			return
		}

		if parts[1] == "review" && r.Method == http.MethodPost {
			var body struct {
				Status string `json:"status"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			document, err := s.service.ReviewDocument(r.Context(), session, propertyID, documentID, body.Status)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, documentPayload(document))
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCreateProperty(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Address      string  `json:"address"`
		Postcode     string  `json:"postcode"`
		Price        float64 `json:"price"`
		Status       string  `json:"status"`
		PropertyType string  `json:"propertyType"`
		Bedrooms     int     `json:"bedrooms"`
		Bathrooms    int     `json:"bathrooms"`
		Tenure       string  `json:"tenure"`
		Description  string  `json:"description"`

		BuyerID           *string `json:"buyerId"`
		SellerID          *string `json:"sellerId"`
		BuyerSolicitorID  *string `json:"buyerSolicitorId"`
		SellerSolicitorID *string `json:"sellerSolicitorId"`
		EstateAgentID     *string `json:"estateAgentId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	input := CreatePropertyInput{
		Address:      body.Address,
		Postcode:     body.Postcode,
		Price:        body.Price,
		Status:       body.Status,
		PropertyType: body.PropertyType,
		Bedrooms:     body.Bedrooms,
		Bathrooms:    body.Bathrooms,
		Tenure:       body.Tenure,
		Description:  body.Description,
	}

	var err error
	if input.BuyerID, err = parseOptionalID(body.BuyerID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "buyerId must be an integer", nil)
		return
	}
	if input.SellerID, err = parseOptionalID(body.SellerID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sellerId must be an integer", nil)
		return
	}
	if input.BuyerSolicitorID, err = parseOptionalID(body.BuyerSolicitorID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "buyerSolicitorId must be an integer", nil)
		return
	}
	if input.SellerSolicitorID, err = parseOptionalID(body.SellerSolicitorID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sellerSolicitorId must be an integer", nil)
		return
	}
	if input.EstateAgentID, err = parseOptionalID(body.EstateAgentID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "estateAgentId must be an integer", nil)
		return
	}

	property, err := s.service.CreateProperty(r.Context(), session, input)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, propertyPayload(property))
}

func (s *HTTPServer) handleUpdateProperty(w http.ResponseWriter, r *http.Request, session Session, propertyID int64) {
	var body struct {
		Address      *string  `json:"address"`
		Postcode     *string  `json:"postcode"`
		Price        *float64 `json:"price"`
		Status       *string  `json:"status"`
		PropertyType *string  `json:"propertyType"`
		Bedrooms     *int     `json:"bedrooms"`
		Bathrooms    *int     `json:"bathrooms"`
		Tenure       *string  `json:"tenure"`
		Description  *string  `json:"description"`

		BuyerID           *string `json:"buyerId"`
		SellerID          *string `json:"sellerId"`
		BuyerSolicitorID  *string `json:"buyerSolicitorId"`
		SellerSolicitorID *string `json:"sellerSolicitorId"`
		EstateAgentID     *string `json:"estateAgentId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	patch := UpdatePropertyInput{
		Address:      body.Address,
		Postcode:     body.Postcode,
		Price:        body.Price,
		Status:       body.Status,
		PropertyType: body.PropertyType,
		Bedrooms:     body.Bedrooms,
		Bathrooms:    body.Bathrooms,
		Tenure:       body.Tenure,
		Description:  body.Description,
	}

	var err error
	if patch.BuyerID, err = parseOptionalID(body.BuyerID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "buyerId must be an integer", nil)
		return
	}
	if patch.SellerID, err = parseOptionalID(body.SellerID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sellerId must be an integer", nil)
		return
	}
	if patch.BuyerSolicitorID, err = parseOptionalID(body.BuyerSolicitorID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "buyerSolicitorId must be an integer", nil)
		return
	}
	if patch.SellerSolicitorID, err = parseOptionalID(body.SellerSolicitorID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sellerSolicitorId must be an integer", nil)
		return
	}
	if patch.EstateAgentID, err = parseOptionalID(body.EstateAgentID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "estateAgentId must be an integer", nil)
		return
	}

	property, err := s.service.UpdateProperty(r.Context(), session, propertyID, patch)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, propertyPayload(property))
}

func (s *HTTPServer) handleCreateStage(w http.ResponseWriter, r *http.Request, session Session, propertyID int64) {
	var body struct {
		Name            string     `json:"name"`
		Description     string     `json:"description"`
		ResponsibleRole string     `json:"responsibleRole"`
		Position        *int       `json:"position"`
		DueDate         *time.Time `json:"dueDate"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	stage, err := s.service.CreateStage(r.Context(), session, propertyID, CreateStageInput{
		Name:            body.Name,
		Description:     body.Description,
		ResponsibleRole: body.ResponsibleRole,
		Position:        body.Position,
		DueDate:         body.DueDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stagePayload(stage))
}

func (s *HTTPServer) handleUpdateStage(w http.ResponseWriter, r *http.Request, session Session, propertyID, stageID int64) {
	var body struct {
		Name            *string    `json:"name"`
		Status          *string    `json:"status"`
		Description     *string    `json:"description"`
		ResponsibleRole *string    `json:"responsibleRole"`
		StartDate       *time.Time `json:"startDate"`
		DueDate         *time.Time `json:"dueDate"`
		CompletedAt     *time.Time `json:"completedAt"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	stage, err := s.service.UpdateStage(r.Context(), session, propertyID, stageID, UpdateStageInput{
		Name:            body.Name,
		Status:          body.Status,
		Description:     body.Description,
		ResponsibleRole: body.ResponsibleRole,
		StartDate:       body.StartDate,
		DueDate:         body.DueDate,
		CompletedAt:     body.CompletedAt,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stagePayload(stage))
}

func (s *HTTPServer) handleUploadDocument(w http.ResponseWriter, r *http.Request, session Session, propertyID int64) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	document, err := s.service.UploadDocument(r.Context(), session, propertyID,
		r.FormValue("documentType"), header.Filename, contentType, header.Size, file)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Document uploaded successfully",
		"document": documentPayload(document),
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, propertyID int64) {
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatPDF
	}
	if format != export.FormatPDF && format != export.FormatDOCX {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
		return
	}

	result, err := s.service.ExportTimeline(r.Context(), session, propertyID, format)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
			return
		}
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func parseOptionalID(raw *string) (*int64, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := parseID(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
