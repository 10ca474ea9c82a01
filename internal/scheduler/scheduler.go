package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsdesk/internal/analysis"
	"newsdesk/internal/domain"
	"newsdesk/internal/feed"
	"newsdesk/internal/registry"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	cycleTimeout          = 15 * time.Minute
)

// Cycle is the outcome of one fetch and analyze run.
type Cycle struct {
	Ingest   domain.IngestResult
	Analysis analysis.Report
}

type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	spec     string
	registry *registry.Registry
	ingestor *feed.Ingestor
	reader   feed.EntryReader
	pipeline *analysis.Pipeline
	log      *slog.Logger

	// running guards against overlapping cycles.
	running sync.Mutex
}

func New(
	ctx context.Context,
	spec string,
	reg *registry.Registry,
	ingestor *feed.Ingestor,
	reader feed.EntryReader,
	pipeline *analysis.Pipeline,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		spec:     spec,
		registry: reg,
		ingestor: ingestor,
		reader:   reader,
		pipeline: pipeline,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runScheduled); err != nil {
		return fmt.Errorf("add cycle job %q: %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce fetches every registered source, stores the new entries and analyzes
// whatever is still unanalyzed. A failing source does not stop the cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (Cycle, error) {
	s.running.Lock()
	defer s.running.Unlock()

	return s.cycle(ctx)
}

func (s *Scheduler) cycle(ctx context.Context) (Cycle, error) {
	var cycle Cycle

	sources, err := s.registry.List(ctx)
	if err != nil {
		return cycle, err
	}

	cycle.Ingest = s.ingestor.IngestAll(ctx, sources, s.reader)

	for _, failure := range cycle.Ingest.FailedSources {
		s.log.WarnContext(ctx, "Failed to ingest source",
			"source", failure.Source,
			"reason", failure.Reason)
	}

	if ctx.Err() != nil {
		return cycle, ctx.Err()
	}

	cycle.Analysis, err = s.pipeline.Run(ctx)
	if err != nil {
		return cycle, fmt.Errorf("analyze articles: %w", err)
	}

	return cycle, nil
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(s.ctx, cycleTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	if !s.running.TryLock() {
		s.log.WarnContext(ctx, "Previous cycle is still running, skipping")
		return
	}
	defer s.running.Unlock()

	cycle, err := s.cycle(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run cycle",
			"error", err,
			"newCount", cycle.Ingest.NewCount,
			"failedSourceCount", len(cycle.Ingest.FailedSources))
		return
	}

	s.log.InfoContext(ctx, "Cycle is finished",
		"newCount", cycle.Ingest.NewCount,
		"skippedCount", cycle.Ingest.SkippedCount,
		"failedSourceCount", len(cycle.Ingest.FailedSources),
		"analyzedCount", cycle.Analysis.Analyzed)
}
