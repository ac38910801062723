// Package utils provides type conversion helpers shared by the feature packages.
//
// The lenient converters (ToInt, ToBool) are for query strings and flags. The strict
// converters (Int64, String, UnixTime) are for decoded JSON payloads and return
// ErrInvalidType instead of guessing.
package utils
