package model

// Candidate is a page the discovery layer proposes as a possible product.
// It carries the raw page so validation phase 1 and the page parse never
// need a second fetch.
type Candidate struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	HTML        string `json:"html,omitempty"`
	Text        string `json:"text,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	// Score is the discoverer's product-likelihood indicator count; candidates
	// arrive ordered by it, highest first.
	Score int `json:"score,omitempty"`
}

// DiscoveryResult holds the outcome of a discovery pass.
type DiscoveryResult struct {
	Candidates []Candidate `json:"candidates"`
	Source     string      `json:"source"` // "firecrawl" or "local"
	Scanned    int         `json:"scanned"`
}
