// Package errors provides the structured error type shared by the host.
//
// Every failure crossing a package boundary carries the orchestration Stage
// it belongs to and a numeric status Code, so a failed run can be reported
// as "stage X failed with status Y" without translating the error into a
// different representation along the way.
package errors
