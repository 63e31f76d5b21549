package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"conveyo/api/internal/rbac"
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

// documentLabels maps known document types to the label used in upload
// notifications.
var documentLabels = map[string]string{
	"proof_of_id":            "Proof of ID",
	"proof_of_address":       "Proof of Address",
	"survey_report":          "Survey Report",
	"local_authority_search": "Local Authority Search",
	"draft_contract":         "Draft Contract",
}

// UploadDocument streams the file into object storage and records its
// metadata plus upload notifications in one transaction. The stored object is
// removed if the metadata write fails.
func (s *Service) UploadDocument(ctx context.Context, session Session, propertyID int64, documentType, filename, contentType string, size int64, body io.Reader) (store.Document, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpUploadDocument)
	if err != nil {
		return store.Document{}, err
	}
	if s.objects == nil {
		return store.Document{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage not configured", nil)
	}
	if filename == "" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filename is required", nil)
	}

	documentID := util.NewID()
	objectKey := fmt.Sprintf("properties/%d/%d-%s", propertyID, documentID, safeFilename(filename))

	written, err := s.objects.Put(ctx, objectKey, body, size, contentType)
	if err != nil {
		return store.Document{}, fmt.Errorf("store document object: %w", err)
	}

	label, ok := documentLabels[documentType]
	if !ok {
		label = documentType
	}
	notifs := notifyParties(prop, session.UserID, "document_uploaded",
		fmt.Sprintf("%s has been uploaded by %s.", label, session.UserName))

	document := store.Document{
		ID:               documentID,
		PropertyID:       propertyID,
		UploadedBy:       session.UserID,
		Filename:         safeFilename(filename),
		OriginalFilename: filename,
		DocumentType:     documentType,
		ObjectKey:        objectKey,
		Size:             written,
		ReviewStatus:     "pending",
	}

	created, err := s.store.InsertDocument(ctx, document, notifs)
	if err != nil {
		if removeErr := s.objects.Remove(ctx, objectKey); removeErr != nil {
			log.Printf("upload document: orphan cleanup %s: %v", objectKey, removeErr)
		}
		return store.Document{}, err
	}
	return created, nil
}

func (s *Service) ListPropertyDocuments(ctx context.Context, session Session, propertyID int64) ([]store.Document, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReadDocuments); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, propertyID)
}

// DocumentDownloadURL returns a short-lived presigned URL for the stored
// object, gated by the caller's relation to the property.
func (s *Service) DocumentDownloadURL(ctx context.Context, session Session, propertyID, documentID int64) (string, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReadDocuments); err != nil {
		return "", err
	}
	if s.objects == nil {
		return "", domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage not configured", nil)
	}

	document, err := s.propertyDocument(ctx, propertyID, documentID)
	if err != nil {
		return "", err
	}

	url, err := s.objects.PresignedGetURL(ctx, document.ObjectKey, document.OriginalFilename, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("presign document %d: %w", documentID, err)
	}
	return url, nil
}

// ReviewDocument records a solicitor's verdict on a pending document.
func (s *Service) ReviewDocument(ctx context.Context, session Session, propertyID, documentID int64, status string) (store.Document, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReviewDocument)
	if err != nil {
		return store.Document{}, err
	}
	if status != "approved" && status != "denied" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be approved or denied", nil)
	}

	document, err := s.propertyDocument(ctx, propertyID, documentID)
	if err != nil {
		return store.Document{}, err
	}

	label, ok := documentLabels[document.DocumentType]
	if !ok {
		label = document.DocumentType
	}
	notifs := []store.Notification{{
		ID:         util.NewID(),
		UserID:     document.UploadedBy,
		PropertyID: propertyIDRef(prop.ID),
		Type:       "document_reviewed",
		Message:    fmt.Sprintf("%s has been %s by %s.", label, status, session.UserName),
	}}

	applied, err := s.store.ReviewDocument(ctx, documentID, status, session.UserID, notifs)
	if err != nil {
		return store.Document{}, err
	}
	if !applied {
		return store.Document{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Document has already been reviewed", nil)
	}

	return s.store.GetDocument(ctx, documentID)
}

func (s *Service) propertyDocument(ctx context.Context, propertyID, documentID int64) (store.Document, error) {
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
		}
		return store.Document{}, err
	}
	if document.PropertyID != propertyID {
		return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
	}
	return document, nil
}

// safeFilename keeps the basename and replaces anything outside a
// conservative character set.
func safeFilename(name string) string {
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
