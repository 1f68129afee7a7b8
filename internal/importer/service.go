package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunPhase names the stage an active run is in.
type RunPhase string

const (
	PhaseStarting  RunPhase = "starting"
	PhaseRunning   RunPhase = "running"
	PhaseComplete  RunPhase = "complete"
	PhaseFailed    RunPhase = "failed"
	PhaseCancelled RunPhase = "cancelled"
)

// RunStatus is a point-in-time snapshot of an active run, broadcast to
// progress subscribers.
type RunStatus struct {
	RunID    string   `json:"runId"`
	FileName string   `json:"fileName,omitempty"`
	Phase    RunPhase `json:"phase"`
	Percent  int      `json:"percent"`
	Error    string   `json:"error,omitempty"`
}

// DefaultRunTimeout caps how long one import may take end to end.
const DefaultRunTimeout = 10 * time.Minute

// cleanupDelay is how long a finished run stays queryable before eviction.
const cleanupDelay = 5 * time.Minute

// Service tracks asynchronous import runs: it starts them in the background,
// fans progress out to subscribers, and keeps results around briefly so the
// wizard can fetch them after the fact.
type Service struct {
	leads      LeadStore
	formations FormationStore
	team       TeamStore
	limiter    *Limiter
	runTimeout time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID       string
	FileName string
	Cancel   context.CancelFunc
	Status   RunStatus
	Result   *ImportResult
	Done     chan struct{}

	listenerMu sync.Mutex
	listeners  []chan RunStatus
	closed     bool
}

// ServiceConfig carries the tunables the service needs from the app config.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	RunTimeout    time.Duration
}

// NewService builds the run tracker.
func NewService(leads LeadStore, formations FormationStore, team TeamStore, cfg ServiceConfig) *Service {
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Service{
		leads:      leads,
		formations: formations,
		team:       team,
		limiter:    NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		runTimeout: timeout,
		runs:       make(map[string]*activeRun),
	}
}

// StartImport begins an asynchronous run over fileData and returns its id
// immediately. Options.Progress is chained so both the caller's callback and
// the service's subscribers observe progress.
func (s *Service) StartImport(ctx context.Context, fileName string, fileData []byte, opts Options) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	roster, err := s.team.Roster(ctx)
	if err != nil {
		s.limiter.Release()
		return "", fmt.Errorf("load team roster: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)

	active := &activeRun{
		FileName: fileName,
		Cancel:   cancel,
		Done:     make(chan struct{}),
	}

	callerProgress := opts.Progress
	opts.Progress = func(percent int) {
		active.setPercent(percent)
		if callerProgress != nil {
			callerProgress(percent)
		}
	}

	run := NewRun(s.leads, s.formations, roster, opts)
	active.ID = run.ID()
	active.Status = RunStatus{RunID: run.ID(), FileName: fileName, Phase: PhaseStarting}

	s.mu.Lock()
	s.runs[run.ID()] = active
	s.mu.Unlock()

	go s.execute(runCtx, cancel, active, run, fileData)

	return run.ID(), nil
}

// execute drives one run to completion in the background.
func (s *Service) execute(ctx context.Context, cancel context.CancelFunc, active *activeRun, run *Run, fileData []byte) {
	defer func() {
		cancel()
		s.limiter.Release()
		active.closeListeners()
		close(active.Done)
		s.cleanup(active.ID, cleanupDelay)
	}()

	active.setPhase(PhaseRunning, "")

	result, err := run.Import(ctx, fileData)
	switch {
	case err != nil && ctx.Err() != nil:
		active.setPhase(PhaseCancelled, err.Error())
		active.Result = &ImportResult{RunID: active.ID, FileName: active.FileName,
			Errors: []ImportError{{Stage: "run", Message: err.Error()}}}
	case err != nil:
		active.setPhase(PhaseFailed, err.Error())
		active.Result = &ImportResult{RunID: active.ID, FileName: active.FileName,
			Errors: []ImportError{{Stage: "run", Message: err.Error()}}}
	default:
		result.FileName = active.FileName
		active.Result = result
		if len(result.Errors) > 0 && result.Inserted < result.Accepted {
			active.setPhase(PhaseFailed, result.Errors[len(result.Errors)-1].Message)
		} else {
			active.setPhase(PhaseComplete, "")
		}
	}
}

// SubscribeProgress returns a channel receiving status updates for a run.
// The current status is delivered immediately; the channel closes when the
// run finishes.
func (s *Service) SubscribeProgress(runID string) (<-chan RunStatus, error) {
	s.mu.RLock()
	active, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("import run not found: %s", runID)
	}

	ch := make(chan RunStatus, 16)

	active.listenerMu.Lock()
	defer active.listenerMu.Unlock()
	if active.closed {
		ch <- active.Status
		close(ch)
		return ch, nil
	}
	active.listeners = append(active.listeners, ch)
	select {
	case ch <- active.Status:
	default:
	}
	return ch, nil
}

// CancelRun cancels an in-progress run. The pipeline notices between chunks;
// already-committed chunks stay committed.
func (s *Service) CancelRun(runID string) error {
	s.mu.RLock()
	active, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("import run not found: %s", runID)
	}
	active.Cancel()
	return nil
}

// Result blocks until the run finishes and returns its result.
func (s *Service) Result(runID string) (*ImportResult, error) {
	s.mu.RLock()
	active, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("import run not found: %s", runID)
	}
	<-active.Done
	return active.Result, nil
}

// Status returns the current status without blocking.
func (s *Service) Status(runID string) (RunStatus, error) {
	s.mu.RLock()
	active, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return RunStatus{}, fmt.Errorf("import run not found: %s", runID)
	}
	return active.snapshot(), nil
}

// ActiveRuns reports how many runs currently hold a limiter slot.
func (s *Service) ActiveRuns() int {
	return s.limiter.Active()
}

// WaitForRuns blocks until all active runs finish or ctx expires.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// PreviewMapping parses the file and returns the inferred mapping with a few
// sample rows, without touching the store. The wizard uses this to let users
// adjust the mapping before committing.
func (s *Service) PreviewMapping(data []byte, overrides map[string]Field) (*MappingPreview, error) {
	table, err := Parse(data)
	if err != nil {
		return nil, err
	}

	mapping := InferMapping(table.Headers)
	for header, field := range overrides {
		if err := mapping.Override(header, field); err != nil {
			return nil, &MappingError{Message: err.Error()}
		}
	}

	preview := &MappingPreview{
		Headers:     table.Headers,
		Fields:      mapping.AsMap(),
		RowCount:    len(table.Rows),
		HasIdentity: mapping.HasIdentityField(),
		Warnings:    mapping.Warnings(),
	}
	for i := 0; i < len(table.Rows) && i < maxPreviewRows; i++ {
		preview.SampleRows = append(preview.SampleRows, table.Rows[i])
	}
	return preview, nil
}

// maxPreviewRows bounds how many rows a mapping preview returns.
const maxPreviewRows = 5

// MappingPreview is the response of PreviewMapping.
type MappingPreview struct {
	Headers     []string         `json:"headers"`
	Fields      map[string]Field `json:"fields"`
	RowCount    int              `json:"rowCount"`
	HasIdentity bool             `json:"hasIdentity"`
	Warnings    []string         `json:"warnings,omitempty"`
	SampleRows  []RawRow         `json:"sampleRows,omitempty"`
}

// cleanup evicts a finished run after delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	go func() {
		time.Sleep(delay)
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
		slog.Debug("import run evicted", "run_id", runID)
	}()
}

func (a *activeRun) setPercent(percent int) {
	a.listenerMu.Lock()
	a.Status.Percent = percent
	status := a.Status
	a.broadcastLocked(status)
	a.listenerMu.Unlock()
}

func (a *activeRun) setPhase(phase RunPhase, errMsg string) {
	a.listenerMu.Lock()
	a.Status.Phase = phase
	a.Status.Error = errMsg
	status := a.Status
	a.broadcastLocked(status)
	a.listenerMu.Unlock()
}

func (a *activeRun) snapshot() RunStatus {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	return a.Status
}

// broadcastLocked sends to every listener without blocking; a slow consumer
// misses intermediate updates rather than stalling the pipeline.
func (a *activeRun) broadcastLocked(status RunStatus) {
	for _, ch := range a.listeners {
		select {
		case ch <- status:
		default:
		}
	}
}

func (a *activeRun) closeListeners() {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for _, ch := range a.listeners {
		// Final status so late readers see the terminal phase.
		select {
		case ch <- a.Status:
		default:
		}
		close(ch)
	}
	a.listeners = nil
}
