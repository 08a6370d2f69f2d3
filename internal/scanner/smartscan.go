package scanner

import (
	"context"
	"net/netip"
	"sort"
	"time"

	"go.uber.org/zap"
)

// defaultDiscoveryTimeout tolerates slow multicast group joins during the
// discovery pass.
const defaultDiscoveryTimeout = 20 * time.Second

// ProbeFunc validates one URL. The error is non-nil only on scan
// cancellation.
type ProbeFunc func(ctx context.Context, url string, timeout time.Duration) (ValidationResult, error)

// SmartScanConfig tunes the smart multicast port scanner.
type SmartScanConfig struct {
	// Enabled selects port discovery; when false every (address, port)
	// pair is probed exhaustively.
	Enabled bool
	// DiscoveryTimeout bounds each discovery-phase probe. Zero selects
	// the default.
	DiscoveryTimeout time.Duration
}

// SmartPortScanner reduces redundant probing across a multicast address
// block: it probes the full port list against the first address only, then
// reuses the discovered port subset for the remaining addresses. If
// discovery finds nothing, the remaining addresses fall back to the full
// port matrix rather than being skipped.
type SmartPortScanner struct {
	strategy         *MulticastStrategy
	probe            ProbeFunc
	enabled          bool
	discoveryTimeout time.Duration
	logger           *zap.SugaredLogger
}

// NewSmartPortScanner wraps a multicast strategy and a probe function.
func NewSmartPortScanner(strategy *MulticastStrategy, probe ProbeFunc, cfg SmartScanConfig, logger *zap.SugaredLogger) *SmartPortScanner {
	timeout := cfg.DiscoveryTimeout
	if timeout <= 0 {
		timeout = defaultDiscoveryTimeout
	}
	return &SmartPortScanner{
		strategy:         strategy,
		probe:            probe,
		enabled:          cfg.Enabled,
		discoveryTimeout: timeout,
		logger:           logger,
	}
}

// Scan executes the smart scan and returns a channel of validation
// results. The channel closes when the scan finishes or ctx is cancelled.
func (s *SmartPortScanner) Scan(ctx context.Context) <-chan ValidationResult {
	out := make(chan ValidationResult)
	go func() {
		defer close(out)
		s.run(ctx, out)
	}()
	return out
}

func (s *SmartPortScanner) run(ctx context.Context, out chan<- ValidationResult) {
	addresses := s.strategy.Addresses()
	if len(addresses) == 0 {
		s.logger.Infow("No multicast addresses to scan")
		return
	}

	if !s.enabled || len(addresses) == 1 {
		s.scanMatrix(ctx, addresses, s.strategy.Ports(), out)
		return
	}

	first, remaining := addresses[0], addresses[1:]
	discovered, ok := s.discoverPorts(ctx, first, out)
	if !ok {
		return
	}

	if len(discovered) == 0 {
		// Discovery may have been a false negative; probe the remaining
		// addresses exhaustively rather than skipping the range.
		s.logger.Warnw("No ports discovered, falling back to full scan",
			"address", first.String(),
		)
		s.scanMatrix(ctx, remaining, s.strategy.Ports(), out)
		return
	}

	sort.Ints(discovered)
	s.logger.Debugw("Port discovery complete",
		"address", first.String(),
		"ports", discovered,
	)
	s.scanMatrix(ctx, remaining, discovered, out)
}

// discoverPorts probes every configured port on one representative address
// with the extended discovery timeout, emitting each result. Returns false
// when the scan was cancelled.
func (s *SmartPortScanner) discoverPorts(ctx context.Context, addr netip.Addr, out chan<- ValidationResult) ([]int, bool) {
	var discovered []int
	for _, port := range s.strategy.Ports() {
		result, err := s.probe(ctx, s.strategy.TargetURL(addr, port), s.discoveryTimeout)
		if err != nil {
			return nil, false
		}
		if result.IsValid {
			discovered = append(discovered, port)
		}
		if !emit(ctx, out, result) {
			return nil, false
		}
	}
	return discovered, true
}

func (s *SmartPortScanner) scanMatrix(ctx context.Context, addresses []netip.Addr, ports []int, out chan<- ValidationResult) {
	for _, addr := range addresses {
		for _, port := range ports {
			result, err := s.probe(ctx, s.strategy.TargetURL(addr, port), 0)
			if err != nil {
				return
			}
			if !emit(ctx, out, result) {
				return
			}
		}
	}
}

func emit(ctx context.Context, out chan<- ValidationResult, result ValidationResult) bool {
	select {
	case out <- result:
		return true
	case <-ctx.Done():
		return false
	}
}
