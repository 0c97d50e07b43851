package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/vectorscan-go/pkg/scanner"
)

// Request types.
const (
	TypeScan        = "scan"
	TypeScanBatch   = "scan_batch"
	TypeStreamOpen  = "stream_open"
	TypeStreamWrite = "stream_write"
	TypeStreamClose = "stream_close"
	TypeClose       = "close"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // one of the Type* constants
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" requests
type ScanPayload struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// StreamWritePayload is the payload for "stream_write" requests
type StreamWritePayload struct {
	StreamID string `json:"stream_id"`
	Content  string `json:"content"`
}

// StreamClosePayload is the payload for "stream_close" requests
type StreamClosePayload struct {
	StreamID string `json:"stream_id"`
}

// StreamOpenData is the data field for "stream_open" responses
type StreamOpenData struct {
	StreamID string `json:"stream_id"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready", "decode" or the request type
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version       string `json:"version"`
	EngineVersion string `json:"engine_version"`
	Rules         int    `json:"rules"`
}
