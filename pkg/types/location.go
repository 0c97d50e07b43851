package types

// OffsetSpan is the half-open byte range [Start, End).
type OffsetSpan struct {
	Start int64
	End   int64
}

// SourcePoint is a 1-based line:column position.
type SourcePoint struct {
	Line   int
	Column int
}

// SourceSpan is a start-end line:column range.
type SourceSpan struct {
	Start SourcePoint
	End   SourcePoint
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan
	Source SourceSpan
}

// ComputeLineColumn converts a byte offset into a 1-based line and column.
func ComputeLineColumn(content []byte, byteOffset int) (line, column int) {
	line, column = 1, 1
	for i := 0; i < byteOffset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

// NewLocation builds a Location for content[start:end], filling in source
// positions.
func NewLocation(content []byte, start, end int) Location {
	startLine, startCol := ComputeLineColumn(content, start)
	endLine, endCol := ComputeLineColumn(content, end)
	return Location{
		Offset: OffsetSpan{Start: int64(start), End: int64(end)},
		Source: SourceSpan{
			Start: SourcePoint{Line: startLine, Column: startCol},
			End:   SourcePoint{Line: endLine, Column: endCol},
		},
	}
}
