package scanner

import "github.com/praetorian-inc/vectorscan-go/pkg/types"

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g., "file:config.yml", "stdin"
	Content  string            `json:"content"`  // the actual content to scan
	Metadata map[string]string `json:"metadata"` // optional metadata
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
	Failed  []ItemError  `json:"failed,omitempty"`
}

// ItemError records a batch item that could not be scanned.
type ItemError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// StreamResult is returned by stream writes and closes.
type StreamResult struct {
	StreamID string         `json:"stream_id"`
	BlobID   types.BlobID   `json:"blob_id"`
	Written  int64          `json:"written"`
	Matches  []*types.Match `json:"matches"`
}
