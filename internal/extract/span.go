package extract

import (
	"sort"
	"strings"
)

// Span is a contiguous region of a document selected for checking.
type Span struct {
	// Text is the text sent to the checker, delimiters removed.
	Text string

	// Offset is the byte offset of Raw within the document.
	Offset int

	// Raw is the matched region including any comment delimiters.
	Raw string

	// segs maps pieces of Text to their position in Raw. Empty means Text
	// is Raw.
	segs []segment
}

// segment records that Text[text:text+n] == Raw[raw:raw+n].
type segment struct {
	text int
	raw  int
	n    int
}

// ContentOffset returns the byte offset of the first byte of Text within Raw.
func (s Span) ContentOffset() int {
	return s.RawOffset(0)
}

// RawOffset maps a byte offset within Text to the corresponding byte offset
// within Raw. Offsets past the end of Text map to the end of the last piece.
func (s Span) RawOffset(textOffset int) int {
	if len(s.segs) == 0 {
		return textOffset
	}
	if textOffset < 0 {
		textOffset = 0
	}

	i := sort.Search(len(s.segs), func(i int) bool {
		return s.segs[i].text > textOffset
	}) - 1
	if i < 0 {
		i = 0
	}
	seg := s.segs[i]

	delta := textOffset - seg.text
	if delta > seg.n {
		delta = seg.n
	}
	return seg.raw + delta
}

// DocumentOffset maps a byte offset within Text to a byte offset within the
// document.
func (s Span) DocumentOffset(textOffset int) int {
	return s.Offset + s.RawOffset(textOffset)
}

// builder assembles a stripped text while recording its segments.
type builder struct {
	raw  string
	text strings.Builder
	segs []segment
}

func (b *builder) add(start, end int) {
	if end <= start {
		return
	}
	b.segs = append(b.segs, segment{text: b.text.Len(), raw: start, n: end - start})
	b.text.WriteString(b.raw[start:end])
}

func (b *builder) span(offset int) Span {
	return Span{
		Text:   b.text.String(),
		Offset: offset,
		Raw:    b.raw,
		segs:   b.segs,
	}
}

// strip removes the delimiters of one matched comment.
func (p pattern) strip(raw string, offset int) Span {
	b := &builder{raw: raw}

	switch p.kind {
	case kindLine:
		start := skipBlank(raw, len(p.open))
		end := trimBlankRight(raw, start, len(raw))
		b.add(start, end)

	case kindBlock:
		start := len(p.open)
		if p.gutter {
			for start < len(raw)-len(p.close) && raw[start] == '*' {
				start++
			}
		}
		start = skipSpace(raw, start)
		end := trimSpaceRight(raw, start, len(raw)-len(p.close))

		lineStart := start
		for lineStart <= end {
			nl := strings.IndexByte(raw[lineStart:end], '\n')
			lineEnd := end
			if nl >= 0 {
				lineEnd = lineStart + nl + 1 // keep the newline
			}

			from := lineStart
			if lineStart != start {
				from = skipBlank(raw, from)
			}
			if p.gutter && from < lineEnd && raw[from] == '*' {
				from = skipBlank(raw, from+1)
			}
			if from > lineEnd {
				from = lineEnd
			}
			b.add(from, lineEnd)

			if nl < 0 {
				break
			}
			lineStart = lineEnd
		}
	}

	return b.span(offset)
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isSpace(c byte) bool {
	return isBlank(c) || c == '\n' || c == '\f' || c == '\v'
}

// skipBlank advances past spaces and tabs on the current line.
func skipBlank(s string, i int) int {
	for i < len(s) && isBlank(s[i]) {
		i++
	}
	return i
}

// skipSpace advances past any whitespace including newlines.
func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func trimBlankRight(s string, start, end int) int {
	for end > start && isBlank(s[end-1]) {
		end--
	}
	return end
}

func trimSpaceRight(s string, start, end int) int {
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return end
}
