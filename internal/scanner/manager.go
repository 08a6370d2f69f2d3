package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrScanNotFound is returned when a session id is unknown.
var ErrScanNotFound = errors.New("scan not found")

const (
	defaultRequestTimeout = 10
	maxRequestTimeout     = 60
)

// StartRequest describes a scan to launch. Template mode requires BaseURL,
// StartIP, and EndIP; multicast mode requires either Preset or the
// Protocol/IPRanges/Ports triple.
type StartRequest struct {
	Mode     ScanMode `json:"mode" binding:"required"`
	BaseURL  string   `json:"base_url,omitempty"`
	StartIP  string   `json:"start_ip,omitempty"`
	EndIP    string   `json:"end_ip,omitempty"`
	Protocol string   `json:"protocol,omitempty"`
	IPRanges []string `json:"ip_ranges,omitempty"`
	Ports    []int    `json:"ports,omitempty"`
	Preset   string   `json:"preset,omitempty"`
	// Timeout is the per-probe timeout in seconds, bounded to [1, 60].
	Timeout int `json:"timeout,omitempty"`
}

// ManagerConfig tunes scan execution.
type ManagerConfig struct {
	// MaxConcurrency bounds in-flight probes per scan (1-50).
	MaxConcurrency int
	// DefaultTimeout is the per-probe timeout in seconds applied to
	// requests that set none (0 selects the built-in default).
	DefaultTimeout int
	// LaunchRate optionally paces probe launches per second.
	LaunchRate int
	// SmartScan enables multicast port discovery.
	SmartScan bool
	// DiscoveryTimeout bounds smart-scan discovery probes.
	DiscoveryTimeout time.Duration
}

// ResultHandler consumes each validation result as it is produced.
// Handler errors are logged; they never affect the scan.
type ResultHandler func(result ValidationResult) error

// CompletionHandler consumes the terminal snapshot of a finished scan,
// whether it completed, was cancelled, or failed.
type CompletionHandler func(snapshot SessionSnapshot) error

// Manager owns scan session lifecycle: it builds strategies from requests,
// runs scans as background tasks, and exposes status polling and
// cancellation. The session table is the only state shared across callers
// and is guarded by its own mutex.
type Manager struct {
	validator Validator
	presets   *PresetLoader
	cfg       ManagerConfig
	logger    *zap.SugaredLogger

	mu          sync.RWMutex
	sessions    map[string]*ScanSession
	handlers    []ResultHandler
	completions []CompletionHandler
}

// NewManager creates a scan session manager.
func NewManager(validator Validator, presets *PresetLoader, cfg ManagerConfig, logger *zap.SugaredLogger) *Manager {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	return &Manager{
		validator: validator,
		presets:   presets,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*ScanSession),
	}
}

// OnResult registers a handler invoked for every validation result.
func (m *Manager) OnResult(handler ResultHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// OnComplete registers a handler invoked once per scan after it reaches a
// terminal state.
func (m *Manager) OnComplete(handler CompletionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, handler)
}

// StartScan validates the request, builds the strategy, and schedules the
// scan as a background task. Construction errors reject the request; they
// never produce a failed session.
func (m *Manager) StartScan(req StartRequest) (SessionSnapshot, error) {
	timeout, err := requestTimeout(req.Timeout, m.cfg.DefaultTimeout)
	if err != nil {
		return SessionSnapshot{}, err
	}

	strategy, err := m.buildStrategy(req)
	if err != nil {
		return SessionSnapshot{}, err
	}

	limiter, err := NewRateLimiter(m.cfg.MaxConcurrency, limiterWindow(timeout, m.cfg.DiscoveryTimeout),
		WithLaunchRate(m.cfg.LaunchRate))
	if err != nil {
		return SessionSnapshot{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := newScanSession(uuid.NewString(), req.Mode, safeEstimate(strategy, m.logger), cancel)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	orchestrator := NewOrchestrator(m.validator, limiter, timeout, m.logger)
	go m.runScan(ctx, session, orchestrator, strategy)

	m.logger.Infow("Scan started",
		"scan_id", session.ID(),
		"mode", req.Mode,
		"total", session.Snapshot().Total,
	)
	return session.Snapshot(), nil
}

// GetScan returns the current snapshot of a session.
func (m *Manager) GetScan(id string) (SessionSnapshot, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return SessionSnapshot{}, ErrScanNotFound
	}
	return session.Snapshot(), nil
}

// ListScans returns snapshots of all known sessions.
func (m *Manager) ListScans() []SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshots := make([]SessionSnapshot, 0, len(m.sessions))
	for _, session := range m.sessions {
		snapshots = append(snapshots, session.Snapshot())
	}
	return snapshots
}

// CancelScan requests cooperative cancellation of a session's background
// task. The session becomes cancelled immediately; the task acknowledges
// at its next target boundary.
func (m *Manager) CancelScan(id string) (SessionSnapshot, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return SessionSnapshot{}, ErrScanNotFound
	}

	if session.transitionTo(StatusCancelled) {
		session.cancel()
		m.logger.Infow("Scan cancelled", "scan_id", id)
	}
	return session.Snapshot(), nil
}

func (m *Manager) runScan(ctx context.Context, session *ScanSession, orchestrator *Orchestrator, strategy ScanStrategy) {
	defer close(session.done)
	defer session.cancel()
	defer m.emitCompletion(session)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorw("Scan panicked", "scan_id", session.ID(), "panic", r)
			session.fail(fmt.Sprint(r))
		}
	}()

	session.transitionTo(StatusRunning)

	results := m.executeStrategy(ctx, orchestrator, strategy)
	for result := range results {
		session.recordResult(result)
		m.emitResult(result)
	}

	if ctx.Err() != nil {
		// Cancellation was already recorded by CancelScan; the table
		// rejects a second terminal transition.
		session.transitionTo(StatusCancelled)
		return
	}

	if session.transitionTo(StatusCompleted) {
		snapshot := session.Snapshot()
		m.logger.Infow("Scan completed",
			"scan_id", session.ID(),
			"valid", snapshot.Valid,
			"invalid", snapshot.Invalid,
		)
	}
}

func (m *Manager) executeStrategy(ctx context.Context, orchestrator *Orchestrator, strategy ScanStrategy) <-chan ValidationResult {
	if multicast, ok := strategy.(*MulticastStrategy); ok && m.cfg.SmartScan {
		return orchestrator.ExecuteSmartScan(ctx, multicast, SmartScanConfig{
			Enabled:          true,
			DiscoveryTimeout: m.cfg.DiscoveryTimeout,
		})
	}
	return orchestrator.ExecuteScan(ctx, strategy)
}

func (m *Manager) emitCompletion(session *ScanSession) {
	m.mu.RLock()
	handlers := make([]CompletionHandler, len(m.completions))
	copy(handlers, m.completions)
	m.mu.RUnlock()

	snapshot := session.Snapshot()
	for _, handler := range handlers {
		if err := handler(snapshot); err != nil {
			m.logger.Warnw("Completion handler failed", "scan_id", snapshot.ID, "error", err)
		}
	}
}

func (m *Manager) emitResult(result ValidationResult) {
	m.mu.RLock()
	handlers := make([]ResultHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(result); err != nil {
			m.logger.Warnw("Result handler failed", "url", result.URL, "error", err)
		}
	}
}

func (m *Manager) buildStrategy(req StartRequest) (ScanStrategy, error) {
	switch req.Mode {
	case ModeTemplate:
		if req.BaseURL == "" || req.StartIP == "" || req.EndIP == "" {
			return nil, fmt.Errorf("template scan requires base_url, start_ip, and end_ip")
		}
		return NewTemplateStrategy(req.BaseURL, req.StartIP, req.EndIP)

	case ModeMulticast:
		if req.Preset != "" {
			preset, err := m.presets.GetByID(req.Preset)
			if err != nil {
				return nil, err
			}
			return preset.ToStrategy()
		}
		if req.Protocol == "" || len(req.IPRanges) == 0 || len(req.Ports) == 0 {
			return nil, fmt.Errorf("multicast scan requires protocol, ip_ranges, and ports, or a preset")
		}
		return NewMulticastStrategy(req.Protocol, req.IPRanges, req.Ports)

	default:
		return nil, fmt.Errorf("unsupported scan mode %q", req.Mode)
	}
}

func requestTimeout(seconds, configured int) (time.Duration, error) {
	if seconds == 0 {
		seconds = configured
	}
	if seconds == 0 {
		seconds = defaultRequestTimeout
	}
	if seconds < 1 || seconds > maxRequestTimeout {
		return 0, fmt.Errorf("timeout must be between 1 and %d seconds", maxRequestTimeout)
	}
	return time.Duration(seconds) * time.Second, nil
}

// limiterWindow is the limiter's default deadline, sized past the longest
// probe window any protocol can take so the validator classifies timeouts.
func limiterWindow(probeTimeout, discoveryTimeout time.Duration) time.Duration {
	window := probeTimeout
	if rtpTimeoutFloor > window {
		window = rtpTimeoutFloor
	}
	if discoveryTimeout > window {
		window = discoveryTimeout
	}
	return window + probeGrace
}

// safeEstimate treats estimation failure as zero, never fatal.
func safeEstimate(strategy ScanStrategy, logger *zap.SugaredLogger) (total int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnw("Failed to estimate target count", "panic", r)
			total = 0
		}
	}()
	return strategy.EstimateTargetCount()
}
