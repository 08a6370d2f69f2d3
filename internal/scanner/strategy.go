// Package scanner implements the stream discovery engine: target
// generation strategies, bounded-concurrency probing, stream validation,
// and scan session lifecycle management.
package scanner

import "context"

// ScanMode identifies the target-generation mode of a scan.
type ScanMode string

const (
	ModeTemplate  ScanMode = "template"
	ModeMulticast ScanMode = "multicast"
)

// ScanStrategy generates candidate stream URLs for validation.
//
// GenerateTargets returns a fresh channel per call; the sequence is finite
// and closed once exhausted or the context is cancelled. Implementations
// perform no network I/O.
type ScanStrategy interface {
	// GenerateTargets yields stream URLs for validation.
	GenerateTargets(ctx context.Context) <-chan string

	// EstimateTargetCount returns the exact number of targets the
	// strategy will generate, used for progress totals.
	EstimateTargetCount() int
}
