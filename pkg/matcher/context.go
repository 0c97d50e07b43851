package matcher

import "bytes"

// ExtractContext returns up to lines lines of content before start and after
// end. The results are copies, so storing them does not pin content in
// memory. The match itself is not included, and a newline directly at end
// belongs to the match line.
func ExtractContext(content []byte, start, end int, lines int) (before, after []byte) {
	if lines <= 0 || start < 0 || end > len(content) || start > end {
		return nil, nil
	}

	if b := linesBefore(content[:start], lines); len(b) > 0 {
		before = bytes.Clone(b)
	}
	if a := linesAfter(content[end:], lines); len(a) > 0 {
		after = bytes.Clone(a)
	}
	return before, after
}

// linesBefore returns the tail of head holding the partial line the match
// starts on plus up to lines complete lines before it.
func linesBefore(head []byte, lines int) []byte {
	pos := len(head)
	for n := 0; n <= lines; n++ {
		i := bytes.LastIndexByte(head[:pos], '\n')
		if i < 0 {
			return head
		}
		if n == lines {
			return head[i+1:]
		}
		pos = i
	}
	return head
}

// linesAfter returns the head of tail up to and including its lines-th
// newline, after skipping a leading newline that ends the match line.
func linesAfter(tail []byte, lines int) []byte {
	if len(tail) > 0 && tail[0] == '\n' {
		tail = tail[1:]
	}
	pos := 0
	for n := 0; n < lines; n++ {
		i := bytes.IndexByte(tail[pos:], '\n')
		if i < 0 {
			return tail
		}
		pos += i + 1
	}
	return tail[:pos]
}
