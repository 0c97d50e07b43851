package matcher

// ChunkConfig configures how large inputs are fed to the engine.
type ChunkConfig struct {
	// MaxBlockSize is the largest blob scanned in one block call; larger
	// blobs go through a stream in ReadSize pieces (default: 64MB).
	MaxBlockSize int

	// ReadSize is the piece size for streamed blobs and MatchReader
	// (default: 1MB).
	ReadSize int

	// HistorySize is how many already-scanned bytes a stream keeps so that
	// snippets and context can be cut for matches spanning earlier writes
	// (default: 64KB).
	HistorySize int
}

// DefaultChunkConfig returns production defaults
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxBlockSize: 64 * 1024 * 1024,
		ReadSize:     1024 * 1024,
		HistorySize:  64 * 1024,
	}
}

func (c ChunkConfig) withDefaults() ChunkConfig {
	d := DefaultChunkConfig()
	if c.MaxBlockSize <= 0 {
		c.MaxBlockSize = d.MaxBlockSize
	}
	if c.ReadSize <= 0 {
		c.ReadSize = d.ReadSize
	}
	if c.HistorySize < 0 {
		c.HistorySize = 0
	} else if c.HistorySize == 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// Chunk represents a portion of content with position info
type Chunk struct {
	Content     []byte // Sub-slice of the original content
	StartOffset int    // Byte offset in original content where this chunk starts
	EndOffset   int    // Byte offset in original content where this chunk ends
	Index       int    // Chunk number (0-indexed)
}

// ChunkContent splits content into consecutive pieces of at most size bytes.
// The pieces do not overlap: a stream carries match state across them.
// Empty content yields a single empty chunk.
func ChunkContent(content []byte, size int) []Chunk {
	if size <= 0 || len(content) <= size {
		return []Chunk{{Content: content, EndOffset: len(content)}}
	}

	chunks := make([]Chunk, 0, (len(content)+size-1)/size)
	for start := 0; start < len(content); start += size {
		end := min(start+size, len(content))
		chunks = append(chunks, Chunk{
			Content:     content[start:end],
			StartOffset: start,
			EndOffset:   end,
			Index:       len(chunks),
		})
	}
	return chunks
}
