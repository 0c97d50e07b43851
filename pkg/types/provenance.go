package types

// Provenance tracks where scanned content came from.
type Provenance interface {
	Kind() string
	// Path returns a displayable path, or "" when there is none.
	Path() string
}

// FileProvenance marks content read from a file.
type FileProvenance struct {
	FilePath string
}

func (f FileProvenance) Kind() string { return "file" }
func (f FileProvenance) Path() string { return f.FilePath }

// StreamProvenance marks content delivered in pieces through a stream, such
// as stdin or a serve-mode stream.
type StreamProvenance struct {
	StreamID string
	Name     string
}

func (s StreamProvenance) Kind() string { return "stream" }
func (s StreamProvenance) Path() string { return s.Name }
