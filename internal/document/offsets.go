package document

import (
	"sort"
	"unicode/utf16"
)

// OffsetIndex converts between byte offsets, UTF-16 offsets and line/character
// positions of one text snapshot. Build one per snapshot; it is immutable and
// safe for concurrent reads.
type OffsetIndex struct {
	content  string
	lines    []lineInfo
	utf16Len int
}

// lineInfo stores the start of a line in both encodings.
type lineInfo struct {
	byteOffset  int // Byte offset of line start
	byteLen     int // Length in bytes, excluding the newline
	utf16Offset int // UTF-16 offset of line start
	utf16Len    int // Length in UTF-16 code units, excluding the newline
}

// NewOffsetIndex indexes content.
func NewOffsetIndex(content string) *OffsetIndex {
	ix := &OffsetIndex{content: content}
	ix.buildLineIndex()
	return ix
}

func (ix *OffsetIndex) buildLineIndex() {
	lineStart := 0
	utf16Start := 0
	utf16Pos := 0

	for i, r := range ix.content {
		if r == '\n' {
			ix.lines = append(ix.lines, lineInfo{
				byteOffset:  lineStart,
				byteLen:     i - lineStart,
				utf16Offset: utf16Start,
				utf16Len:    utf16Pos - utf16Start,
			})
			lineStart = i + 1
			utf16Pos++
			utf16Start = utf16Pos
			continue
		}
		utf16Pos += utf16RuneLen(r)
	}

	// Last line may not end with a newline
	ix.lines = append(ix.lines, lineInfo{
		byteOffset:  lineStart,
		byteLen:     len(ix.content) - lineStart,
		utf16Offset: utf16Start,
		utf16Len:    utf16Pos - utf16Start,
	})
	ix.utf16Len = utf16Pos
}

// Len returns the length of the content in UTF-16 code units.
func (ix *OffsetIndex) Len() int {
	return ix.utf16Len
}

// LineCount returns the number of lines.
func (ix *OffsetIndex) LineCount() int {
	return len(ix.lines)
}

// ToUTF16 converts a byte offset to a UTF-16 offset. Out-of-range offsets
// are clamped.
func (ix *OffsetIndex) ToUTF16(byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset >= len(ix.content) {
		return ix.utf16Len
	}

	n := sort.Search(len(ix.lines), func(i int) bool {
		return ix.lines[i].byteOffset > byteOffset
	}) - 1
	line := ix.lines[n]

	lineContent := ix.content[line.byteOffset : line.byteOffset+line.byteLen]
	return line.utf16Offset + ByteToUTF16(lineContent, byteOffset-line.byteOffset)
}

// ToByte converts a UTF-16 offset to a byte offset. Out-of-range offsets
// are clamped.
func (ix *OffsetIndex) ToByte(utf16Offset int) int {
	if utf16Offset <= 0 {
		return 0
	}
	if utf16Offset >= ix.utf16Len {
		return len(ix.content)
	}

	line := ix.lines[ix.lineForUTF16(utf16Offset)]
	inLine := utf16Offset - line.utf16Offset
	if inLine > line.utf16Len {
		// Points at the newline
		return line.byteOffset + line.byteLen
	}

	lineContent := ix.content[line.byteOffset : line.byteOffset+line.byteLen]
	return line.byteOffset + UTF16ToByte(lineContent, inLine)
}

// Position converts a UTF-16 offset to a line/character position.
func (ix *OffsetIndex) Position(utf16Offset int) Position {
	if utf16Offset <= 0 {
		return Position{}
	}
	if utf16Offset > ix.utf16Len {
		utf16Offset = ix.utf16Len
	}

	n := ix.lineForUTF16(utf16Offset)
	line := ix.lines[n]
	char := utf16Offset - line.utf16Offset
	if char > line.utf16Len {
		char = line.utf16Len
	}
	return Position{Line: n, Character: char}
}

// Offset converts a line/character position to a UTF-16 offset.
func (ix *OffsetIndex) Offset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(ix.lines) {
		return ix.utf16Len
	}
	line := ix.lines[pos.Line]
	char := pos.Character
	if char < 0 {
		char = 0
	}
	if char > line.utf16Len {
		char = line.utf16Len
	}
	return line.utf16Offset + char
}

// Slice returns the text covered by rng.
func (ix *OffsetIndex) Slice(rng Range) string {
	start := ix.ToByte(rng.Start)
	end := ix.ToByte(rng.End)
	if end < start {
		return ""
	}
	return ix.content[start:end]
}

// lineForUTF16 returns the index of the line containing utf16Offset.
func (ix *OffsetIndex) lineForUTF16(utf16Offset int) int {
	return sort.Search(len(ix.lines), func(i int) bool {
		return ix.lines[i].utf16Offset > utf16Offset
	}) - 1
}

// --- UTF-16 conversion helpers ---

func utf16RuneLen(r rune) int {
	if r >= 0x10000 {
		return 2 // Surrogate pair
	}
	return 1
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	count := 0
	for _, r := range s {
		count += utf16RuneLen(r)
	}
	return count
}

// ByteToUTF16 converts a byte offset within s to a UTF-16 offset.
func ByteToUTF16(s string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(s) {
		return UTF16Len(s)
	}

	utf16Off := 0
	for i, r := range s {
		if i >= byteOff {
			break
		}
		utf16Off += utf16RuneLen(r)
	}
	return utf16Off
}

// UTF16ToByte converts a UTF-16 offset within s to a byte offset.
func UTF16ToByte(s string, utf16Off int) int {
	if utf16Off <= 0 {
		return 0
	}

	utf16Count := 0
	for i, r := range s {
		if utf16Count >= utf16Off {
			return i
		}
		utf16Count += utf16RuneLen(r)
	}
	return len(s)
}

// EncodeUTF16 encodes a string to UTF-16.
func EncodeUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
