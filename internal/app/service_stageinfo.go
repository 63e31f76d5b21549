package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

// StageInfo serves the cached explanation of a stage for a role, generating
// and caching one on a miss. Generation failure degrades to the placeholder
// text; the endpoint never errors on the AI dependency.
func (s *Service) StageInfo(ctx context.Context, stage, role string) (string, error) {
	if role != "buyer" && role != "seller" {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Only buyers and sellers can access stage information", nil)
	}
	if stage == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stage is required", nil)
	}

	cached, err := s.store.GetStageExplanation(ctx, stage, role)
	if err == nil {
		return cached.Explanation, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	explanation, genErr := s.generateExplanation(ctx, stage, role)
	if genErr != nil {
		log.Printf("stage info: generate %q/%s: %v", stage, role, genErr)
		return placeholderExplanation(stage), nil
	}

	if _, err := s.store.UpsertStageExplanation(ctx, store.StageExplanation{
		ID:          util.NewID(),
		Stage:       stage,
		Role:        role,
		Explanation: explanation,
	}); err != nil {
		return "", err
	}
	return explanation, nil
}

// RegenerateStageInfo forces a fresh explanation, overwriting the cache. On
// generation failure the previously cached text is served unchanged.
func (s *Service) RegenerateStageInfo(ctx context.Context, stage, role string) (string, error) {
	if role != "buyer" && role != "seller" {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Only buyers and sellers can access stage information", nil)
	}
	if stage == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stage is required", nil)
	}

	explanation, genErr := s.generateExplanation(ctx, stage, role)
	if genErr != nil {
		log.Printf("stage info: regenerate %q/%s: %v", stage, role, genErr)
		cached, err := s.store.GetStageExplanation(ctx, stage, role)
		if err == nil {
			return cached.Explanation, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return placeholderExplanation(stage), nil
	}

	if _, err := s.store.UpsertStageExplanation(ctx, store.StageExplanation{
		ID:          util.NewID(),
		Stage:       stage,
		Role:        role,
		Explanation: explanation,
	}); err != nil {
		return "", err
	}
	return explanation, nil
}

func (s *Service) generateExplanation(ctx context.Context, stage, role string) (string, error) {
	if s.ai == nil {
		return "", errors.New("moderation client not configured")
	}
	return s.ai.Explain(ctx, stage, role)
}
