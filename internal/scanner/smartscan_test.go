package scanner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// probeRecorder fakes a ProbeFunc, marking URLs valid when they end in one
// of the given port suffixes.
type probeRecorder struct {
	mu         sync.Mutex
	validPorts []string
	calls      []string
	timeouts   []time.Duration
}

func (r *probeRecorder) probe(_ context.Context, url string, timeout time.Duration) (ValidationResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, url)
	r.timeouts = append(r.timeouts, timeout)
	r.mu.Unlock()

	for _, suffix := range r.validPorts {
		if strings.HasSuffix(url, suffix) {
			return ValidationResult{URL: url, Protocol: "udp", IsValid: true}, nil
		}
	}
	return ValidationResult{
		URL:           url,
		Protocol:      "udp",
		IsValid:       false,
		ErrorCategory: ErrorTimeout,
	}, nil
}

func collectResults(t *testing.T, results <-chan ValidationResult) []ValidationResult {
	t.Helper()

	var collected []ValidationResult
	for result := range results {
		collected = append(collected, result)
	}
	return collected
}

func newSmartScanStrategy(t *testing.T) *MulticastStrategy {
	t.Helper()

	strategy, err := NewMulticastStrategy("udp", []string{"239.0.0.1-239.0.0.2"}, []int{5000, 5001, 5002})
	require.NoError(t, err)
	return strategy
}

func TestSmartPortScanner_ReusesDiscoveredPorts(t *testing.T) {
	t.Parallel()

	strategy := newSmartScanStrategy(t)
	recorder := &probeRecorder{validPorts: []string{":5001"}}
	scanner := NewSmartPortScanner(strategy, recorder.probe, SmartScanConfig{
		Enabled:          true,
		DiscoveryTimeout: 42 * time.Second,
	}, zap.NewNop().Sugar())

	results := collectResults(t, scanner.Scan(context.Background()))

	// Three discovery probes on the first address, then only the
	// discovered port on the second.
	assert.Equal(t, []string{
		"udp://239.0.0.1:5000",
		"udp://239.0.0.1:5001",
		"udp://239.0.0.1:5002",
		"udp://239.0.0.2:5001",
	}, recorder.calls)
	assert.Len(t, results, 4)

	// Discovery probes carry the extended timeout; follow-up probes defer
	// to the orchestrator default.
	assert.Equal(t, []time.Duration{
		42 * time.Second, 42 * time.Second, 42 * time.Second, 0,
	}, recorder.timeouts)
}

func TestSmartPortScanner_DiscoveredPortsSortedAscending(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("udp", []string{"239.0.0.1-239.0.0.2"}, []int{5002, 5000, 5001})
	require.NoError(t, err)

	recorder := &probeRecorder{validPorts: []string{":5002", ":5000"}}
	scanner := NewSmartPortScanner(strategy, recorder.probe, SmartScanConfig{Enabled: true}, zap.NewNop().Sugar())

	collectResults(t, scanner.Scan(context.Background()))

	assert.Equal(t, []string{
		"udp://239.0.0.1:5002",
		"udp://239.0.0.1:5000",
		"udp://239.0.0.1:5001",
		"udp://239.0.0.2:5000",
		"udp://239.0.0.2:5002",
	}, recorder.calls)
}

func TestSmartPortScanner_FallsBackToFullMatrix(t *testing.T) {
	t.Parallel()

	strategy := newSmartScanStrategy(t)
	recorder := &probeRecorder{}
	scanner := NewSmartPortScanner(strategy, recorder.probe, SmartScanConfig{Enabled: true}, zap.NewNop().Sugar())

	results := collectResults(t, scanner.Scan(context.Background()))

	// Nothing discovered on the first address: the remaining address is
	// still probed on every port instead of being skipped.
	assert.Equal(t, []string{
		"udp://239.0.0.1:5000",
		"udp://239.0.0.1:5001",
		"udp://239.0.0.1:5002",
		"udp://239.0.0.2:5000",
		"udp://239.0.0.2:5001",
		"udp://239.0.0.2:5002",
	}, recorder.calls)
	assert.Len(t, results, 6)
}

func TestSmartPortScanner_DisabledScansExhaustively(t *testing.T) {
	t.Parallel()

	strategy := newSmartScanStrategy(t)
	recorder := &probeRecorder{validPorts: []string{":5001"}}
	scanner := NewSmartPortScanner(strategy, recorder.probe, SmartScanConfig{Enabled: false}, zap.NewNop().Sugar())

	results := collectResults(t, scanner.Scan(context.Background()))

	assert.Len(t, recorder.calls, 6)
	assert.Len(t, results, 6)
	for _, timeout := range recorder.timeouts {
		assert.Zero(t, timeout)
	}
}

func TestSmartPortScanner_SingleAddressSkipsDiscovery(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("udp", []string{"239.0.0.1"}, []int{5000, 5001, 5002})
	require.NoError(t, err)

	recorder := &probeRecorder{validPorts: []string{":5000"}}
	scanner := NewSmartPortScanner(strategy, recorder.probe, SmartScanConfig{Enabled: true}, zap.NewNop().Sugar())

	results := collectResults(t, scanner.Scan(context.Background()))

	// Discovery has no follow-up addresses to help; the single address is
	// probed on every port directly.
	assert.Len(t, recorder.calls, 3)
	assert.Len(t, results, 3)
	for _, timeout := range recorder.timeouts {
		assert.Zero(t, timeout)
	}
}

func TestSmartPortScanner_StopsOnCancelledProbe(t *testing.T) {
	t.Parallel()

	strategy := newSmartScanStrategy(t)
	calls := 0
	probe := func(context.Context, string, time.Duration) (ValidationResult, error) {
		calls++
		return ValidationResult{}, context.Canceled
	}
	scanner := NewSmartPortScanner(strategy, probe, SmartScanConfig{Enabled: true}, zap.NewNop().Sugar())

	results := collectResults(t, scanner.Scan(context.Background()))

	assert.Empty(t, results)
	assert.Equal(t, 1, calls)
}
