// Package report renders a discovery run.
//
// Writers share the Writer interface and can be combined with MultiWriter:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: the run with per-provider status records
//   - CSVWriter: one row per broker in the flat result field order
//   - MarkdownWriter: a shareable report ending with the opt-out checklist
//
// Checklist renders the plain-text opt-out checklist on its own, and
// SaveResults writes the CSV and JSON files of a run into a directory.
package report
