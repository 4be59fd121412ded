package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/report"
)

// DefaultWorkers bounds task concurrency when the config does not.
const DefaultWorkers = 5

// Scheduler owns a full sync run: discovery of the task set, then bounded
// parallel execution.
type Scheduler struct {
	syncer   *Syncer
	workers  int
	reporter report.Reporter
	logger   *zap.Logger
}

// RunResult summarizes one run. Errors collects task failures and isolated
// per-destination copy failures.
type RunResult struct {
	RunID       string
	Tasks       int
	Succeeded   int
	Failed      int
	ItemsCopied int
	BytesCopied int64
	Errors      []string
}

type taskResult struct {
	task  Task
	stats ItemStats
	err   error
}

func NewScheduler(syncer *Syncer, workers int, reporter report.Reporter, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scheduler{
		syncer:   syncer,
		workers:  workers,
		reporter: reporter,
		logger:   logger,
	}
}

// Run executes one sync run over the seed tasks. Discovery is single
// threaded and completes before the worker pool starts, so the dedup map is
// never written concurrently. Task failures are recorded in the result;
// they never cancel sibling tasks.
func (s *Scheduler) Run(ctx context.Context, seeds []Task) (*RunResult, error) {
	runID := uuid.New().String()
	logger := s.logger.With(zap.String("run", runID))

	result := &RunResult{RunID: runID}

	tasks := s.discover(ctx, seeds, result)
	if len(tasks) == 0 {
		return result, ctx.Err()
	}

	logger.Info("starting sync run",
		zap.Int("tasks", result.Tasks),
		zap.Int("workers", s.workers),
	)

	jobs := make(chan *Task, len(tasks))
	results := make(chan taskResult, len(tasks))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, jobs, results)
		}(i)
	}

	// Send jobs
	go func() {
		for _, task := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
		close(jobs)
	}()

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		result.ItemsCopied += r.stats.Copied
		result.BytesCopied += r.stats.Bytes
		result.Errors = append(result.Errors, r.stats.Errors...)

		if r.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, r.err.Error())
			continue
		}
		result.Succeeded++
	}

	logger.Info("sync run finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("items_copied", result.ItemsCopied),
		zap.Int64("bytes_copied", result.BytesCopied),
	)
	return result, ctx.Err()
}

// discover seeds the dedup map with the configured tasks, then expands
// follow lists. A user reached more than once collapses to a single task:
// the first-seen mode is authoritative and the first non-empty names win.
// Expansion is single hop; emitted tasks carry Follows=false.
func (s *Scheduler) discover(ctx context.Context, seeds []Task, result *RunResult) []*Task {
	byID := make(map[feed.UserID]*Task)
	var order []*Task

	merge := func(t Task) {
		if existing, ok := byID[t.User.ID]; ok {
			if existing.User.DisplayName == "" {
				existing.User.DisplayName = t.User.DisplayName
			}
			if existing.User.KnownName == "" {
				existing.User.KnownName = t.User.KnownName
			}
			return
		}
		task := t
		byID[t.User.ID] = &task
		order = append(order, &task)
	}

	for _, seed := range seeds {
		merge(seed)
	}

	failedIDs := make(map[feed.UserID]bool)
	for i := 0; i < len(order); i++ {
		task := order[i]
		if !task.Follows {
			continue
		}

		fh := s.reporter.Start(report.Event{Kind: report.KindSyncFeed, User: task.User})
		res, err := s.syncer.ResolveProfile(ctx, task)
		if err != nil {
			fh.Error(err.Error())
			failedIDs[task.User.ID] = true
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		for _, f := range res.Follows {
			merge(f)
		}
		result.Errors = append(result.Errors, res.PushErrors...)
		fh.Success()
	}

	result.Tasks = len(order)

	var runnable []*Task
	for _, task := range order {
		if failedIDs[task.User.ID] {
			continue
		}
		runnable = append(runnable, task)
	}
	return runnable
}

func (s *Scheduler) worker(ctx context.Context, id int, jobs <-chan *Task, results chan<- taskResult) {
	for task := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.logger.Debug("worker picked task",
			zap.Int("worker", id),
			zap.String("task", task.String()),
		)
		result := s.runTask(ctx, task)

		select {
		case <-ctx.Done():
			return
		case results <- result:
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *Task) taskResult {
	var pushErrs []string
	if !task.Resolved {
		res, err := s.syncer.ResolveProfile(ctx, task)
		if err != nil {
			return taskResult{task: *task, err: err}
		}
		pushErrs = res.PushErrors
	}

	stats, err := s.syncer.SyncUserItems(ctx, task.User, task.Mode)
	stats.Errors = append(pushErrs, stats.Errors...)
	return taskResult{task: *task, stats: stats, err: err}
}
