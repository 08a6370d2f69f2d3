package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// probeGrace pads the limiter deadline past the validator's own probe
// deadline so the validator classifies the timeout, not the limiter.
const probeGrace = 2 * time.Second

// ProgressObserver receives a snapshot after each completed probe.
// Observer errors are logged and skipped; they never abort the scan.
type ProgressObserver func(ProgressSnapshot) error

// Orchestrator drives a strategy through the rate limiter and validator,
// emitting validation results in target order.
type Orchestrator struct {
	validator Validator
	limiter   *RateLimiter
	timeout   time.Duration
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	observers []ProgressObserver
}

// NewOrchestrator wires a validator and limiter. probeTimeout bounds each
// individual probe; zero selects the validator default.
func NewOrchestrator(validator Validator, limiter *RateLimiter, probeTimeout time.Duration, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		validator: validator,
		limiter:   limiter,
		timeout:   probeTimeout,
		logger:    logger,
	}
}

// OnProgress registers an observer invoked after each completed probe.
func (o *Orchestrator) OnProgress(observer ProgressObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, observer)
}

// ExecuteScan runs the strategy and returns a channel yielding one
// validation result per target, in the order the strategy produced them.
// The channel closes when the strategy is exhausted or ctx is cancelled.
func (o *Orchestrator) ExecuteScan(ctx context.Context, strategy ScanStrategy) <-chan ValidationResult {
	out := make(chan ValidationResult)
	go func() {
		defer close(out)

		progress := o.newProgress(strategy.EstimateTargetCount())
		for url := range strategy.GenerateTargets(ctx) {
			result, err := o.probe(ctx, url, o.timeout)
			if err != nil {
				return
			}
			if !o.deliver(ctx, &progress, result, out) {
				return
			}
		}
	}()
	return out
}

// ExecuteSmartScan runs a multicast strategy through the smart port
// scanner, sharing the orchestrator's limiter, validator, and progress
// observers.
func (o *Orchestrator) ExecuteSmartScan(ctx context.Context, strategy *MulticastStrategy, cfg SmartScanConfig) <-chan ValidationResult {
	out := make(chan ValidationResult)
	go func() {
		defer close(out)

		progress := o.newProgress(strategy.EstimateTargetCount())
		scanner := NewSmartPortScanner(strategy, o.probe, cfg, o.logger)
		for result := range scanner.Scan(ctx) {
			if !o.deliver(ctx, &progress, result, out) {
				return
			}
		}
	}()
	return out
}

func (o *Orchestrator) newProgress(total int) ProgressSnapshot {
	return ProgressSnapshot{Total: total, StartedAt: time.Now().UTC()}
}

// probe runs one validation through the rate limiter. The returned error
// is non-nil only when the scan context was cancelled; probe failures are
// always folded into the result.
func (o *Orchestrator) probe(ctx context.Context, url string, timeout time.Duration) (ValidationResult, error) {
	if timeout <= 0 {
		timeout = o.timeout
	}

	window := timeout
	if window < rtpTimeoutFloor {
		window = rtpTimeoutFloor
	}
	window += probeGrace

	var result ValidationResult
	err := o.limiter.Execute(ctx, window, func(workCtx context.Context) error {
		result = o.validator.Validate(workCtx, url, timeout)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return ValidationResult{
				URL:           url,
				Protocol:      detectProtocol(url),
				IsValid:       false,
				ErrorCategory: ErrorTimeout,
				ErrorMessage:  "Probe exceeded execution deadline.",
				Timestamp:     time.Now().UTC(),
			}, nil
		}
		return ValidationResult{}, err
	}
	return result, nil
}

// deliver updates counters, broadcasts a snapshot, and yields the result.
// Returns false once the context is cancelled.
func (o *Orchestrator) deliver(ctx context.Context, progress *ProgressSnapshot, result ValidationResult, out chan<- ValidationResult) bool {
	progress.Completed++
	if result.IsValid {
		progress.Valid++
	} else {
		progress.Invalid++
	}
	o.dispatchProgress(*progress)

	select {
	case out <- result:
		return true
	case <-ctx.Done():
		return false
	}
}

// dispatchProgress notifies all observers concurrently and waits for the
// batch before the next result is yielded.
func (o *Orchestrator) dispatchProgress(snapshot ProgressSnapshot) {
	o.mu.Lock()
	observers := make([]ProgressObserver, len(o.observers))
	copy(observers, o.observers)
	o.mu.Unlock()

	if len(observers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, observer := range observers {
		wg.Add(1)
		go func(obs ProgressObserver) {
			defer wg.Done()
			if err := obs(snapshot); err != nil {
				o.logger.Warnw("Progress observer failed", "error", err)
			}
		}(observer)
	}
	wg.Wait()
}
