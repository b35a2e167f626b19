package backend

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is the default check language.
const DefaultLanguage = "ca-ES"

// ValidateLanguage checks that tag is a well-formed BCP 47 tag or "auto".
func ValidateLanguage(tag string) error {
	if tag == "auto" {
		return nil
	}
	if tag == "" {
		return fmt.Errorf("language tag is empty")
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return nil
}

// VerbForms selects the Catalan verb-form variant.
type VerbForms string

const (
	VerbFormsDefault  VerbForms = ""
	VerbFormsCentral  VerbForms = "central"
	VerbFormsValencia VerbForms = "valencia"
	VerbFormsBalear   VerbForms = "balear"
)

// ParseVerbForms validates a verb-form variant name.
func ParseVerbForms(s string) (VerbForms, error) {
	switch v := VerbForms(strings.ToLower(strings.TrimSpace(s))); v {
	case VerbFormsDefault, VerbFormsCentral, VerbFormsValencia, VerbFormsBalear:
		return v, nil
	default:
		return VerbFormsDefault, fmt.Errorf("unknown verb forms %q", s)
	}
}
