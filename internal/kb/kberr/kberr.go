// Package kberr defines the error taxonomy shared by the kb packages.
package kberr

import "errors"

// Sentinel kinds. Use errors.Is against these after wrapping with fmt.Errorf.
var (
	// ErrIO marks a failure to open, read, or write a file named by the caller.
	ErrIO = errors.New("kb: i/o failure")

	// ErrSchemaMismatch marks a record whose column count does not match its
	// KB's declared field count.
	ErrSchemaMismatch = errors.New("kb: record does not match schema")

	// ErrMalformedConfig marks a relation or output-field config that does
	// not follow the expected line grammar.
	ErrMalformedConfig = errors.New("kb: malformed config")

	// ErrInvariant marks an internal invariant violation (e.g. a record
	// marked used with no matched pointer at render time). In a language
	// with assertions this would be one; here it is a typed, recoverable
	// error so a single bad record does not abort an entire render pass.
	ErrInvariant = errors.New("kb: invariant violation")
)
