package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProperty ResultType = "property"
	ResultMessage  ResultType = "message"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         int64      `json:"id,string"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	PropertyID int64      `json:"propertyId,string"`
	Status     string     `json:"status,omitempty"`
}

// Query describes a search request. AllowedPropertyIDs scopes every search
// to the properties the caller is a party to.
type Query struct {
	Text               string
	FilterType         ResultType // empty = all types
	FilterPropertyID   int64
	AllowedPropertyIDs []int64
	Limit              int
	Offset             int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexProperty(p PropertyRecord) error
	IndexMessage(m MessageRecord) error
	DeleteProperty(id int64) error
	DeleteMessage(id int64) error
}

// PropertyRecord is the data we index for a property.
type PropertyRecord struct {
	ID          int64  `json:"id"`
	Address     string `json:"address"`
	Postcode    string `json:"postcode"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// MessageRecord is the data we index for a message.
type MessageRecord struct {
	ID             int64  `json:"id"`
	Content        string `json:"content"`
	PropertyID     int64  `json:"propertyId"`
	ApprovalStatus string `json:"approvalStatus"`
}
