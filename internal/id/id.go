// Package id generates compact unique identifiers for sync jobs, used to
// correlate log lines across a job's lifetime.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// jobAlphabet keeps job IDs short and grep-friendly in logs.
const jobAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Job returns a short identifier for one action invocation, e.g. "job-k3x09qw1zf".
func Job() string {
	id, err := gonanoid.Generate(jobAlphabet, 10)
	if err != nil {
		// Entropy exhaustion at this point means the system is beyond
		// saving; crash loudly rather than sync under a reused ID.
		panic(fmt.Sprintf("failed to generate job ID: %v", err))
	}
	return "job-" + id
}

// Generate creates a prefixed unique ID using the default NanoID alphabet.
// Format: prefix-nanoid (e.g. "run-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
