// Package watch re-validates declared models on a cron schedule and
// archives every run, so schema drift shows up without anyone asking.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/validator"
)

var (
	ErrAlreadyRunning = errors.New("watch already running")
	ErrNotRunning     = errors.New("watch is not running")
)

// Archive stores a finished run. *report.Archiver implements it.
type Archive interface {
	Save(ctx context.Context, r *report.Report) (string, error)
}

// Status is a snapshot of the watcher.
type Status struct {
	Running   bool      `json:"running"`
	Schedule  string    `json:"schedule"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
	LastValid bool      `json:"last_valid"`
	LastKey   string    `json:"last_key,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type Watcher struct {
	mu       sync.RWMutex
	cron     *cron.Cron
	schedule string
	running  bool
	// initial tracks the run Start fires immediately
	initial sync.WaitGroup

	validator *validator.Validator
	tables    []*model.Table
	archive   Archive
	meta      report.Meta
	timeout   time.Duration
	onStart   bool
	log       logger.Sink

	runs    int
	lastRun time.Time
	nextRun time.Time
	last    *report.Report
	lastKey string
	lastErr error
}

type Option func(*Watcher)

func WithArchive(a Archive) Option {
	return func(w *Watcher) { w.archive = a }
}

func WithMeta(m report.Meta) Option {
	return func(w *Watcher) { w.meta = m }
}

// WithRunTimeout bounds a single run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.timeout = d }
}

// WithRunOnStart controls whether Start runs one check immediately.
func WithRunOnStart(b bool) Option {
	return func(w *Watcher) { w.onStart = b }
}

func WithLogger(l logger.Sink) Option {
	return func(w *Watcher) { w.log = l }
}

// New builds a stopped watcher. schedule uses the five-field cron syntax or
// a descriptor such as "@every 10m".
func New(v *validator.Validator, tables []*model.Table, schedule string, opts ...Option) *Watcher {
	w := &Watcher{
		schedule:  schedule,
		validator: v,
		tables:    tables,
		onStart:   true,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start schedules the check. Jobs derive their context from ctx; a run that
// is still going when the next tick fires is skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyRunning
	}

	cl := cronLogger{w.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	id, err := c.AddFunc(w.schedule, func() { w.run(ctx) })
	if err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", w.schedule, err)
	}
	// the wrapped job carries the Recover and SkipIfStillRunning chain, so
	// the immediate run and the first tick never overlap
	job := c.Entry(id).WrappedJob

	c.Start()
	w.cron = c
	w.running = true
	if entries := c.Entries(); len(entries) > 0 {
		w.nextRun = entries[0].Next
	}
	w.log.Infof("schema watch started, schedule %q, %d table(s), next run %s",
		w.schedule, len(w.tables), w.nextRun.Format(time.RFC3339))

	if w.onStart {
		w.initial.Add(1)
		go func() {
			defer w.initial.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return ErrNotRunning
	}
	c := w.cron
	w.running = false
	w.cron = nil
	w.mu.Unlock()

	// jobs take w.mu, so wait without holding it
	<-c.Stop().Done()
	w.initial.Wait()
	w.log.Infof("schema watch stopped")
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.log.Errorf("schema watch run failed: %v", err)
	}
}

// RunOnce validates every table, archives the report when an archive is
// configured and records the outcome in Status. Drift is not an error.
func (w *Watcher) RunOnce(ctx context.Context) (*report.Report, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	started := time.Now()
	batch, err := w.validator.ValidateAll(ctx, w.tables, false)
	if err != nil {
		w.record(started, nil, "", err)
		return nil, err
	}

	rep := report.New(batch, started, w.meta)
	if batch.AllValid {
		w.log.Infof("schema watch: all %d table(s) match their models", len(batch.Tables))
	} else {
		for _, res := range batch.Failed() {
			w.log.Warnf("schema watch: table %s drifted from its model (%d difference(s))", res.Table, len(res.Errors))
		}
	}

	var key string
	if w.archive != nil {
		key, err = w.archive.Save(ctx, rep)
		if err != nil {
			err = fmt.Errorf("archive report %s: %w", rep.ID, err)
		}
	}
	w.record(started, rep, key, err)
	return rep, err
}

func (w *Watcher) record(at time.Time, rep *report.Report, key string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs++
	w.lastRun = at
	if rep != nil {
		w.last = rep
	}
	w.lastKey = key
	w.lastErr = err
	if w.cron != nil {
		if entries := w.cron.Entries(); len(entries) > 0 {
			w.nextRun = entries[0].Next
		}
	}
}

// Last returns the most recent report, or nil before the first run.
func (w *Watcher) Last() *report.Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Status{
		Running:  w.running,
		Schedule: w.schedule,
		Runs:     w.runs,
		LastRun:  w.lastRun,
		LastKey:  w.lastKey,
	}
	if w.running {
		s.NextRun = w.nextRun
	}
	if w.last != nil && w.last.Result != nil {
		s.LastValid = w.last.Result.AllValid
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

// cronLogger routes the scheduler's own messages to a logger.Sink.
type cronLogger struct {
	log logger.Sink
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
