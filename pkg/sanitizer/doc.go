// Package sanitizer normalizes user supplied strings before validation and
// storage. Every function is idempotent and never fails; input that cannot be
// normalized is returned trimmed.
//
// Normalization includes:
//   - Free text (lot names, addresses): trim and collapse inner whitespace
//   - Vehicle tags: upper case, single spaces, at most 20 characters
//   - Identifiers (lot, booking, requester ids): trim only
//   - Dates and times: trim, and zero-pad single digit hours ("9:30" -> "09:30")
package sanitizer
