// Package batch drives a sequential, single-worker pass over a list of
// identifiers.
//
// Each identifier is resolved in turn, followed by a fixed pause so the batch
// stays inside PubChem's informal rate limits. Cancellation is cooperative:
// the context is checked before each identifier and during the pause, never
// in the middle of a resolve. A Checkpoint lets callers persist each item and
// skip identifiers a previous session already completed.
package batch
