package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across properties and messages using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	if len(q.AllowedPropertyIDs) == 0 {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	scope := q.AllowedPropertyIDs
	if q.FilterPropertyID != 0 {
		scope = []int64{q.FilterPropertyID}
	}
	scopeArray := int64Array(scope)

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, scopeArray}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProperty {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'property'::text AS type, p.id, p.address AS title,
				ts_headline('english', coalesce(p.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS property_id, p.status,
				ts_rank(p.search_vector, %s) AS rank
			FROM properties p
			WHERE p.search_vector @@ %s AND p.id = ANY($2::bigint[])`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultMessage {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'message'::text AS type, m.id, ''::text AS title,
				ts_headline('english', coalesce(m.filtered_content, m.original_content), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				m.property_id, m.approval_status AS status,
				ts_rank(m.search_vector, %s) AS rank
			FROM messages m
			WHERE m.search_vector @@ %s AND m.property_id = ANY($2::bigint[])`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, property_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.PropertyID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// int64Array renders ids as a Postgres bigint array literal.
func int64Array(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PropertyRecord, []MessageRecord, error) {
	propRows, err := p.db.QueryContext(ctx, `
		SELECT id, address, postcode, description, status
		FROM properties
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load properties: %w", err)
	}
	defer propRows.Close()

	properties := make([]PropertyRecord, 0)
	for propRows.Next() {
		var r PropertyRecord
		if err := propRows.Scan(&r.ID, &r.Address, &r.Postcode, &r.Description, &r.Status); err != nil {
			return nil, nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, r)
	}
	if err := propRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate properties: %w", err)
	}

	msgRows, err := p.db.QueryContext(ctx, `
		SELECT id, coalesce(NULLIF(filtered_content, ''), original_content), property_id, approval_status
		FROM messages
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	defer msgRows.Close()

	messages := make([]MessageRecord, 0)
	for msgRows.Next() {
		var r MessageRecord
		if err := msgRows.Scan(&r.ID, &r.Content, &r.PropertyID, &r.ApprovalStatus); err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, r)
	}
	if err := msgRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate messages: %w", err)
	}

	return properties, messages, nil
}
