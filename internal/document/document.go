package document

import (
	"context"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Document is a read-only view of a host text buffer.
type Document interface {
	// URI identifies the document. It is stable across edits.
	URI() string

	// Version increases every time the text changes.
	Version() int64

	// Text returns the full current text.
	Text() string

	// LanguageID returns the host's language classification tag.
	LanguageID() string
}

// Editor applies text edits to host documents.
type Editor interface {
	// ApplyEdit replaces rng in the document identified by uri with text.
	ApplyEdit(ctx context.Context, uri string, rng Range, text string) error
}

// Position is a zero-based line and character. Character counts UTF-16
// code units.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) interval of UTF-16 code unit offsets
// into a document.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of code units covered by the range.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether offset lies within the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Overlaps reports whether two ranges share at least one code unit.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// File is an in-memory Document. It is safe for concurrent use and also
// implements Editor for its own URI.
type File struct {
	mu         sync.RWMutex
	uri        string
	languageID string
	text       string
	version    int64
}

// NewFile creates a document at version 1.
func NewFile(uri, languageID, text string) *File {
	return &File{
		uri:        uri,
		languageID: languageID,
		text:       text,
		version:    1,
	}
}

// URI implements Document.
func (f *File) URI() string { return f.uri }

// LanguageID implements Document.
func (f *File) LanguageID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.languageID
}

// Version implements Document.
func (f *File) Version() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// Text implements Document.
func (f *File) Text() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text
}

// SetText replaces the whole text and bumps the version. Setting identical
// text is a no-op.
func (f *File) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if text == f.text {
		return
	}
	f.text = text
	f.version++
}

// SetLanguageID changes the language classification.
func (f *File) SetLanguageID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.languageID = id
}

// ApplyEdit implements Editor for edits addressed to this file.
func (f *File) ApplyEdit(_ context.Context, uri string, rng Range, text string) error {
	if uri != f.uri {
		return ErrUnknownDocument
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	idx := NewOffsetIndex(f.text)
	if rng.Start < 0 || rng.End < rng.Start || rng.End > idx.Len() {
		return ErrInvalidRange
	}
	start := idx.ToByte(rng.Start)
	end := idx.ToByte(rng.End)
	f.text = f.text[:start] + text + f.text[end:]
	f.version++
	return nil
}

// FilePathToURI converts a file path to a file:// URI.
func FilePathToURI(path string) string {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)

	// On Windows, add extra slash for drive letter
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{
		Scheme: "file",
		Path:   path,
	}
	return u.String()
}

// URIToFilePath converts a file:// URI back to a path. Other URIs are
// returned unchanged.
func URIToFilePath(uri string) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}

	path := u.Path

	// On Windows, remove leading slash before drive letter
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path)
}

// DetectLanguageID returns the host language tag for a file path.
func DetectLanguageID(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".pl", ".pm":
		return "perl"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".m":
		return "objective-c"
	case ".cs":
		return "csharp"
	case ".swift":
		return "swift"
	case ".kt", ".kts":
		return "kotlin"
	case ".scala":
		return "scala"
	case ".php":
		return "php"
	case ".vue":
		return "vue"
	case ".lua":
		return "lua"
	case ".sh":
		return "shell"
	case ".bash":
		return "bash"
	case ".ps1":
		return "powershell"
	case ".r":
		return "r"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".xml":
		return "xml"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".scss":
		return "scss"
	case ".less":
		return "less"
	case ".sql":
		return "sql"
	case ".md", ".markdown":
		return "markdown"
	case ".tex", ".latex":
		return "latex"
	default:
		base := strings.ToLower(filepath.Base(path))
		switch base {
		case "dockerfile":
			return "dockerfile"
		case "makefile", "gnumakefile":
			return "makefile"
		}
		return "plaintext"
	}
}
