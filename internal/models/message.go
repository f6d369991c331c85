// Package models holds the logical and wire types shared across the
// mailstore, the hand-off queue, and the arrival pipeline.
package models

// Message is the logical, fully-decrypted view of a stored email.
type Message struct {
	ID          string   `json:"id"`
	Sender      string   `json:"sender"`
	Recipient   string   `json:"recipient"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ArrivalTime string   `json:"arrival_time"`
	IsRead      bool     `json:"is_read"`
	Tags        []string `json:"tags"`
	SizeBytes   int      `json:"size_bytes"`
}

// ListItem is the materialized, paginated view of a message: the body is
// replaced by a cleaned, truncated snippet rather than the full text.
type ListItem struct {
	ID          string   `json:"id"`
	Sender      string   `json:"sender"`
	Recipient   string   `json:"recipient"`
	Subject     string   `json:"subject"`
	BodySnippet string   `json:"body_snippet"`
	ArrivalTime string   `json:"arrival_time"`
	IsRead      bool     `json:"is_read"`
	Tags        []string `json:"tags"`
	SizeBytes   int      `json:"size_bytes"`
}

// QueueEnvelope is the JSON shape handed off from the ingestor to the
// hand-off queue, and from the queue to the indexer worker.
type QueueEnvelope struct {
	ID          string   `json:"id"`
	Sender      string   `json:"sender"`
	Recipient   string   `json:"recipient"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ArrivalTime string   `json:"arrival_time"`
	IsRead      bool     `json:"is_read"`
	Tags        []string `json:"tags"`
	SizeBytes   int      `json:"size_bytes"`
}

// NotificationEnvelope is the JSON shape published to subscribers on arrival.
type NotificationEnvelope struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	Status      string `json:"status"`
	ArrivalTime string `json:"arrival_time"`
}

// Filter describes the Query inputs accepted by the mailstore.
type Filter struct {
	RecipientUsername string
	IsRead            *bool
	DateFrom          string
	DateTo            string
	Search            string
	Advanced          string
}

// Page is the paginated Query result shape, matching the public API's
// pagination fields exactly (spec.md §6).
type Page struct {
	Items       []ListItem `json:"items"`
	TotalItems  int        `json:"total_items"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	PageSize    int        `json:"page_size"`
}

// SortField enumerates the columns Query may sort by.
type SortField string

const (
	SortByArrivalTime SortField = "arrival_time"
	SortByIsRead      SortField = "is_read"
)

// SortOrder enumerates ascending/descending sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)
