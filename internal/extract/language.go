package extract

import "regexp"

// Family groups languages that share comment syntax.
type Family int

const (
	// FamilyNone means the language has no known comment syntax and is
	// treated as prose.
	FamilyNone Family = iota
	// FamilyC covers // line and /* */ block comments.
	FamilyC
	// FamilyHash covers # line comments.
	FamilyHash
	// FamilyPython covers # line comments and triple-quoted docstrings.
	FamilyPython
	// FamilyMarkup covers <!-- --> comments.
	FamilyMarkup
	// FamilyLua covers -- line and --[[ ]] block comments.
	FamilyLua
	// FamilySQL covers -- line and /* */ block comments.
	FamilySQL
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyNone:
		return "none"
	case FamilyC:
		return "c"
	case FamilyHash:
		return "hash"
	case FamilyPython:
		return "python"
	case FamilyMarkup:
		return "markup"
	case FamilyLua:
		return "lua"
	case FamilySQL:
		return "sql"
	default:
		return "unknown"
	}
}

var families = map[string]Family{
	"javascript":      FamilyC,
	"javascriptreact": FamilyC,
	"typescript":      FamilyC,
	"typescriptreact": FamilyC,
	"java":            FamilyC,
	"c":               FamilyC,
	"cpp":             FamilyC,
	"csharp":          FamilyC,
	"go":              FamilyC,
	"rust":            FamilyC,
	"swift":           FamilyC,
	"kotlin":          FamilyC,
	"scala":           FamilyC,
	"php":             FamilyC,
	"jsx":             FamilyC,
	"tsx":             FamilyC,
	"vue":             FamilyC,
	"css":             FamilyC,
	"scss":            FamilyC,
	"less":            FamilyC,
	"objective-c":     FamilyC,

	"ruby":        FamilyHash,
	"perl":        FamilyHash,
	"shell":       FamilyHash,
	"shellscript": FamilyHash,
	"bash":        FamilyHash,
	"yaml":        FamilyHash,
	"powershell":  FamilyHash,
	"r":           FamilyHash,
	"makefile":    FamilyHash,
	"dockerfile":  FamilyHash,
	"toml":        FamilyHash,

	"python": FamilyPython,

	"html": FamilyMarkup,
	"xml":  FamilyMarkup,

	"lua": FamilyLua,

	"sql": FamilySQL,
}

// FamilyOf returns the comment family of a language tag.
func FamilyOf(languageID string) Family {
	return families[languageID]
}

// IsCodeLanguage reports whether comments can be extracted for languageID.
func IsCodeLanguage(languageID string) bool {
	return FamilyOf(languageID) != FamilyNone
}

// kind distinguishes single-line from delimited comments.
type kind int

const (
	kindLine kind = iota
	kindBlock
)

// pattern locates one comment syntax.
type pattern struct {
	re    *regexp.Regexp
	kind  kind
	open  string
	close string
	// gutter strips a leading "*" on every line of the body.
	gutter bool
}

var (
	slashLine = pattern{re: regexp.MustCompile(`//[^\n]*`), kind: kindLine, open: "//"}
	hashLine  = pattern{re: regexp.MustCompile(`#[^\n]*`), kind: kindLine, open: "#"}
	dashLine  = pattern{re: regexp.MustCompile(`--[^\n]*`), kind: kindLine, open: "--"}

	starBlock = pattern{re: regexp.MustCompile(`(?s)/\*.*?\*/`), kind: kindBlock, open: "/*", close: "*/", gutter: true}
	htmlBlock = pattern{re: regexp.MustCompile(`(?s)<!--.*?-->`), kind: kindBlock, open: "<!--", close: "-->"}
	luaBlock  = pattern{re: regexp.MustCompile(`(?s)--\[\[.*?\]\]`), kind: kindBlock, open: "--[[", close: "]]"}

	dqDocstring = pattern{re: regexp.MustCompile(`(?s)""".*?"""`), kind: kindBlock, open: `"""`, close: `"""`}
	sqDocstring = pattern{re: regexp.MustCompile(`(?s)'''.*?'''`), kind: kindBlock, open: `'''`, close: `'''`}
)

var familyPatterns = map[Family][]pattern{
	FamilyC:      {slashLine, starBlock},
	FamilyHash:   {hashLine},
	FamilyPython: {hashLine, dqDocstring, sqDocstring},
	FamilyMarkup: {htmlBlock},
	FamilyLua:    {dashLine, luaBlock},
	FamilySQL:    {dashLine, starBlock},
}
