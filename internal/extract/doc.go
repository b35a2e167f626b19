// Package extract selects the parts of a document that are worth sending to
// the grammar service.
//
// Prose documents are checked whole. Code documents are reduced to their
// comment bodies: a small set of per-language delimiter patterns locates
// comments, the delimiters (and block comment "*" gutters) are stripped, and
// each remaining body becomes a Span. Spans remember how their stripped text
// maps back onto the raw comment so that offsets reported against the
// stripped text can be placed exactly in the document.
//
// The patterns are lexical approximations. A comment token inside a string
// literal is reported as a comment.
package extract
