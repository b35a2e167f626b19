// Package document models the host editor boundary for corrector.
//
// The checker core never owns editor state. It sees documents through the
// Document interface (identity, version token, full text, language tag) and
// applies quick fixes through Editor. Offsets exchanged with the host are
// UTF-16 code units of the whole document, which is what LSP clients and the
// grammar service both use; OffsetIndex converts between those and Go byte
// offsets.
package document
