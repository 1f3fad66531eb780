package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"grievance/models"
)

// Processor runs one escalation scan
type Processor interface {
	ProcessEscalations(ctx context.Context) (*models.ScanReport, error)
}

// Status is a snapshot of the worker for health checks
type Status struct {
	Running    bool               `json:"running"`
	Interval   string             `json:"interval"`
	Runs       int                `json:"runs"`
	LastRunAt  *time.Time         `json:"last_run_at,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	LastReport *models.ScanReport `json:"last_report,omitempty"`
}

// EscalationWorker is a background worker that periodically processes escalations
type EscalationWorker struct {
	processor    Processor
	interval     time.Duration
	startupDelay time.Duration

	mu         sync.Mutex
	running    bool
	stopChan   chan struct{}
	done       chan struct{}
	runs       int
	lastRunAt  *time.Time
	lastErr    error
	lastReport *models.ScanReport
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(processor Processor, interval, startupDelay time.Duration) *EscalationWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &EscalationWorker{
		processor:    processor,
		interval:     interval,
		startupDelay: startupDelay,
	}
}

// Start starts the escalation worker. The first scan runs after the
// startup delay, then once per interval until Stop or ctx is cancelled.
func (w *EscalationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		log.Println("[ESCALATION] worker is already running")
		return
	}

	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	log.Printf("[ESCALATION] worker started (interval: %v, startup delay: %v)", w.interval, w.startupDelay)

	go w.run(ctx, w.stopChan, w.done)
}

// Stop signals the worker and waits for an in-flight scan to finish
func (w *EscalationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	log.Println("[ESCALATION] stopping worker...")
	close(w.stopChan)
	done := w.done
	w.running = false
	w.mu.Unlock()

	<-done
	log.Println("[ESCALATION] worker stopped")
}

// run is the main worker loop
func (w *EscalationWorker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if w.startupDelay > 0 {
		timer := time.NewTimer(w.startupDelay)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs one scan and records its outcome.
// Scans are idempotent, so an extra run is harmless.
func (w *EscalationWorker) RunOnce(ctx context.Context) (*models.ScanReport, error) {
	report, err := w.processor.ProcessEscalations(ctx)

	now := time.Now().UTC()
	w.mu.Lock()
	w.runs++
	w.lastRunAt = &now
	w.lastErr = err
	if report != nil {
		w.lastReport = report
	}
	w.mu.Unlock()

	if err != nil {
		log.Printf("[ESCALATION] error processing escalations: %v", err)
	}
	return report, err
}

// LastReport returns the most recent scan report, or nil before the first scan
func (w *EscalationWorker) LastReport() *models.ScanReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReport
}

// Status returns a snapshot of the worker state
func (w *EscalationWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Running:    w.running,
		Interval:   w.interval.String(),
		Runs:       w.runs,
		LastRunAt:  w.lastRunAt,
		LastReport: w.lastReport,
	}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	return st
}
