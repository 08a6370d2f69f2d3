package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubValidator returns canned results keyed by URL; unknown URLs get a
// network failure.
type stubValidator struct {
	mu      sync.Mutex
	results map[string]ValidationResult
	calls   []string
}

func (v *stubValidator) Validate(_ context.Context, url string, _ time.Duration) ValidationResult {
	v.mu.Lock()
	v.calls = append(v.calls, url)
	v.mu.Unlock()

	if result, ok := v.results[url]; ok {
		result.URL = url
		return result
	}
	return ValidationResult{
		URL:           url,
		IsValid:       false,
		ErrorCategory: ErrorNetworkUnreachable,
		ErrorMessage:  "Connection refused",
	}
}

func newTestOrchestrator(t *testing.T, validator Validator) *Orchestrator {
	t.Helper()

	limiter, err := NewRateLimiter(4, time.Minute)
	require.NoError(t, err)
	return NewOrchestrator(validator, limiter, time.Second, zap.NewNop().Sugar())
}

func TestOrchestrator_ExecuteScanOrderedResults(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("http://{ip}:8080/stream", "10.0.0.1", "10.0.0.2")
	require.NoError(t, err)

	validator := &stubValidator{results: map[string]ValidationResult{
		"http://10.0.0.1:8080/stream": {
			Protocol:   "http",
			IsValid:    true,
			Resolution: "1280x720",
			VideoCodec: "h264",
			AudioCodec: "aac",
		},
	}}
	orchestrator := newTestOrchestrator(t, validator)

	var snapshots []ProgressSnapshot
	var mu sync.Mutex
	orchestrator.OnProgress(func(snapshot ProgressSnapshot) error {
		mu.Lock()
		snapshots = append(snapshots, snapshot)
		mu.Unlock()
		return nil
	})

	results := collectResults(t, orchestrator.ExecuteScan(context.Background(), strategy))

	require.Len(t, results, 2)
	assert.Equal(t, "http://10.0.0.1:8080/stream", results[0].URL)
	assert.True(t, results[0].IsValid)
	assert.Equal(t, "1280x720", results[0].Resolution)
	assert.Equal(t, "http://10.0.0.2:8080/stream", results[1].URL)
	assert.False(t, results[1].IsValid)
	assert.Equal(t, ErrorNetworkUnreachable, results[1].ErrorCategory)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 2)
	final := snapshots[1]
	assert.Equal(t, 2, final.Total)
	assert.Equal(t, 2, final.Completed)
	assert.Equal(t, 1, final.Valid)
	assert.Equal(t, 1, final.Invalid)
	assert.False(t, final.StartedAt.IsZero())
}

func TestOrchestrator_ObserverFailureDoesNotAbortScan(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("http://{ip}/stream", "10.0.0.1", "10.0.0.3")
	require.NoError(t, err)

	orchestrator := newTestOrchestrator(t, &stubValidator{})
	orchestrator.OnProgress(func(ProgressSnapshot) error {
		return assert.AnError
	})

	var healthyCalls int
	var mu sync.Mutex
	orchestrator.OnProgress(func(ProgressSnapshot) error {
		mu.Lock()
		healthyCalls++
		mu.Unlock()
		return nil
	})

	results := collectResults(t, orchestrator.ExecuteScan(context.Background(), strategy))

	assert.Len(t, results, 3)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, healthyCalls)
}

func TestOrchestrator_ExecuteScanStopsOnCancel(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("http://{ip}/stream", "10.0.0.1", "10.0.0.50")
	require.NoError(t, err)

	orchestrator := newTestOrchestrator(t, &stubValidator{})

	ctx, cancel := context.WithCancel(context.Background())
	results := orchestrator.ExecuteScan(ctx, strategy)

	first, ok := <-results
	require.True(t, ok)
	assert.Equal(t, "http://10.0.0.1/stream", first.URL)
	cancel()

	count := 1
	for range results {
		count++
	}
	assert.Less(t, count, 50, "cancellation must stop target generation early")
}

func TestOrchestrator_ExecuteSmartScanSharesProgress(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("udp", []string{"239.0.0.1-239.0.0.2"}, []int{5000, 5001})
	require.NoError(t, err)

	validator := &stubValidator{results: map[string]ValidationResult{
		"udp://239.0.0.1:5000": {Protocol: "udp", IsValid: true, VideoCodec: "h264"},
	}}
	orchestrator := newTestOrchestrator(t, validator)

	var final ProgressSnapshot
	var mu sync.Mutex
	orchestrator.OnProgress(func(snapshot ProgressSnapshot) error {
		mu.Lock()
		final = snapshot
		mu.Unlock()
		return nil
	})

	results := collectResults(t, orchestrator.ExecuteSmartScan(context.Background(), strategy, SmartScanConfig{
		Enabled:          true,
		DiscoveryTimeout: time.Second,
	}))

	// Discovery probes both ports on the first address, then only the
	// discovered port on the second.
	require.Len(t, results, 3)
	assert.Equal(t, "udp://239.0.0.2:5000", results[2].URL)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, final.Total)
	assert.Equal(t, 3, final.Completed)
	assert.Equal(t, 2, final.Valid)
	assert.Equal(t, 1, final.Invalid)
}
