package extract

import (
	"iter"
	"sort"
	"strings"
	"unicode/utf8"
)

// MinTextLen is the minimum number of characters a stripped comment must
// contain to be worth checking.
const MinTextLen = 3

// Extract returns the spans of text to check for a document in languageID.
// Code languages yield their comment bodies; everything else yields the
// whole text.
func Extract(text, languageID string) iter.Seq[Span] {
	if IsCodeLanguage(languageID) {
		return Comments(text, languageID)
	}
	return Whole(text)
}

// Whole yields the entire text as a single span at offset 0, or nothing
// when the text is empty or whitespace only.
func Whole(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		yield(Span{Text: text, Offset: 0, Raw: text})
	}
}

type candidate struct {
	start, end int
	p          pattern
}

// Comments yields the comment bodies of text in ascending offset order.
// Nothing is computed until the sequence is ranged over, and every range
// scans the text again.
func Comments(text, languageID string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		patterns := familyPatterns[FamilyOf(languageID)]
		if len(patterns) == 0 {
			return
		}

		var found []candidate
		for _, p := range patterns {
			for _, loc := range p.re.FindAllStringIndex(text, -1) {
				found = append(found, candidate{start: loc[0], end: loc[1], p: p})
			}
		}
		sort.SliceStable(found, func(i, j int) bool {
			if found[i].start != found[j].start {
				return found[i].start < found[j].start
			}
			return found[i].end > found[j].end
		})

		claimed := 0
		for _, c := range found {
			if c.start < claimed {
				continue
			}
			claimed = c.end

			span := c.p.strip(text[c.start:c.end], c.start)
			if utf8.RuneCountInString(strings.TrimSpace(span.Text)) < MinTextLen {
				continue
			}
			if !yield(span) {
				return
			}
		}
	}
}
