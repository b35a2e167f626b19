package backend

import "strings"

// IssueCategory classifies a match for severity mapping.
type IssueCategory int

const (
	CategoryOther IssueCategory = iota
	CategoryMisspelling
	CategoryTypographical
	CategoryGrammar
	CategoryStyle
)

// String returns the category name.
func (c IssueCategory) String() string {
	switch c {
	case CategoryMisspelling:
		return "misspelling"
	case CategoryTypographical:
		return "typographical"
	case CategoryGrammar:
		return "grammar"
	case CategoryStyle:
		return "style"
	default:
		return "other"
	}
}

// ParseIssueCategory maps a rule issueType to a category. LanguageTool has
// more issue types than we distinguish; the remainder fall into
// CategoryOther.
func ParseIssueCategory(issueType string) IssueCategory {
	switch strings.ToLower(issueType) {
	case "misspelling":
		return CategoryMisspelling
	case "typographical", "whitespace":
		return CategoryTypographical
	case "grammar":
		return CategoryGrammar
	case "style", "register", "locale-violation":
		return CategoryStyle
	default:
		return CategoryOther
	}
}

// Match is one issue reported by the service.
type Match struct {
	// Offset and Length are UTF-16 code units relative to the text sent.
	Offset int
	Length int

	Message         string
	ShortMessage    string
	RuleID          string
	RuleDescription string
	Category        IssueCategory
	CategoryID      string
	CategoryName    string
	Replacements    []string
}

// End returns Offset + Length.
func (m Match) End() int {
	return m.Offset + m.Length
}
