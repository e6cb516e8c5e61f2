package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Status  string `json:"status"`
}

// Query describes a search request. Searches are always tenant-scoped.
type Query struct {
	TenantID string
	Text     string
	Limit    int
	Offset   int
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

// PageRecord is the flattened projection we index for a page. Body is the
// derived text cache, so indexing happens on every save alongside the cache
// recomputation.
type PageRecord struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Status   string `json:"status"`
}
