package core

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/lock"
	"github.com/JonMunkholm/machinelog/internal/schema"
)

const statusMessage = "Machine Daily Recording System is running."

// Options configures a Service. Schema and Store are required.
type Options struct {
	Schema *schema.Schema
	Store  grid.Store

	// Locker serialises writers per sheet. Defaults to an in-process locker.
	Locker lock.Locker

	// Limiter bounds concurrent submissions. Defaults to NewLimiter(0, 0).
	Limiter *Limiter

	// SubmissionTimeout bounds one Apply including lock waits. Zero means none.
	SubmissionTimeout time.Duration

	// SummaryWorkers is how many date sheets are read in parallel (default 4).
	SummaryWorkers int

	// AutoFlush saves flushable stores after every write.
	AutoFlush bool

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service records submissions and builds summaries.
type Service struct {
	schema    *schema.Schema
	store     grid.Store
	locker    lock.Locker
	limiter   *Limiter
	validator *Validator

	timeout   time.Duration
	workers   int
	autoFlush bool
	now       func() time.Time

	stats counters
}

type counters struct {
	accepted            atomic.Int64
	rejected            atomic.Int64
	failed              atomic.Int64
	cellsUpdated        atomic.Int64
	skippedMachineTypes atomic.Int64
	skippedStatuses     atomic.Int64
	summaryRebuilds     atomic.Int64
	lastSubmission      atomic.Pointer[time.Time]
	lastRebuild         atomic.Pointer[time.Time]
}

// NewService wires a Service from opts.
func NewService(opts Options) (*Service, error) {
	if opts.Schema == nil {
		return nil, errors.New("core: schema is required")
	}
	if opts.Store == nil {
		return nil, errors.New("core: store is required")
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(0, 0)
	}
	if opts.SummaryWorkers <= 0 {
		opts.SummaryWorkers = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		schema:    opts.Schema,
		store:     opts.Store,
		locker:    opts.Locker,
		limiter:   opts.Limiter,
		validator: NewValidator(opts.Schema),
		timeout:   opts.SubmissionTimeout,
		workers:   opts.SummaryWorkers,
		autoFlush: opts.AutoFlush,
		now:       opts.Now,
	}, nil
}

// Schema returns the schema the service was built with.
func (s *Service) Schema() *schema.Schema { return s.schema }

// Store returns the backing sheet store.
func (s *Service) Store() grid.Store { return s.store }

// Limiter returns the submission limiter, for draining on shutdown.
func (s *Service) Limiter() *Limiter { return s.limiter }

// Status returns the health and schema probe.
func (s *Service) Status() StatusReport {
	return StatusReport{
		Status:       "online",
		Message:      statusMessage,
		Timestamp:    s.now().UTC(),
		Factories:    s.schema.Factories(),
		MachineTypes: s.schema.MachineTypes(),
		StatusTypes:  s.schema.StatusTypes(),
		Stats:        s.Stats(),
	}
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	return Stats{
		Accepted:            s.stats.accepted.Load(),
		Rejected:            s.stats.rejected.Load(),
		Failed:              s.stats.failed.Load(),
		CellsUpdated:        s.stats.cellsUpdated.Load(),
		SkippedMachineTypes: s.stats.skippedMachineTypes.Load(),
		SkippedStatuses:     s.stats.skippedStatuses.Load(),
		SummaryRebuilds:     s.stats.summaryRebuilds.Load(),
		LastSubmission:      s.stats.lastSubmission.Load(),
		LastRebuild:         s.stats.lastRebuild.Load(),
		Limiter:             s.limiter.Status(),
	}
}
