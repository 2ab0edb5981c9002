// Package sanitizer normalizes user-supplied text before validation and
// storage.
//
// All functions are idempotent: applying them twice gives the same result
// as applying them once. Invalid input is normalized as far as possible
// rather than rejected; rejection is the validator's job.
//
// Normalization includes:
//   - Emails: trim and lowercase
//   - Names and titles: collapse whitespace, trim leading/trailing spaces
//   - Descriptions: trim, keep inner line breaks
//   - Identifier lists: trim, drop empties and duplicates, sort
package sanitizer
