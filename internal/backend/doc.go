// Package backend speaks the LanguageTool-compatible HTTP protocol used by
// both the hosted grammar API and the locally spawned engine.
//
// A check is a form-encoded POST to {base}/check; the JSON reply carries a
// "matches" array. Offsets and lengths in a Match are measured in UTF-16
// code units of the submitted text because the service runs on the JVM.
// GET {base}/languages doubles as the health probe.
package backend
