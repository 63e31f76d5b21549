package app

import (
	"context"

	"conveyo/api/internal/search"
)

// Search runs a full-text query over properties and messages, scoped to the
// properties the caller is a party to.
func (s *Service) Search(ctx context.Context, session Session, text, filterType string, propertyID int64, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}

	properties, err := s.store.ListPropertiesForUser(ctx, session.UserID)
	if err != nil {
		return search.Response{}, err
	}
	allowed := make([]int64, 0, len(properties))
	for _, p := range properties {
		allowed = append(allowed, p.ID)
	}

	if propertyID != 0 && !containsID(allowed, propertyID) {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.search.Search(search.Query{
		Text:               text,
		FilterType:         search.ResultType(filterType),
		FilterPropertyID:   propertyID,
		AllowedPropertyIDs: allowed,
		Limit:              limit,
		Offset:             offset,
	}), nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
