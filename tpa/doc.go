// Package tpa builds the trusted-platform-assembly list: the
// semicolon-terminated sequence of absolute assembly paths handed to the
// execution domain. Candidate directories and extension patterns are
// scanned in fixed priority order and deduplicated by logical assembly
// name, first writer wins.
package tpa
