// Package fsmtest provides testing utilities for state machines: an ordered
// event log, states that write their lifecycle to it, and log assertions.
package fsmtest

import "slices"

// Recorder is an append-only log of lifecycle events. It is not safe for
// concurrent use, matching the machines it observes.
type Recorder struct {
	entries []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an entry.
func (r *Recorder) Record(entry string) {
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of the log.
func (r *Recorder) Entries() []string {
	return slices.Clone(r.entries)
}

// Count returns how many times entry was recorded.
func (r *Recorder) Count(entry string) int {
	n := 0

	for _, e := range r.entries {
		if e == entry {
			n++
		}
	}

	return n
}

// Index returns the position of the first occurrence of entry, or -1.
func (r *Recorder) Index(entry string) int {
	return slices.Index(r.entries, entry)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.entries = nil
}
