package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"datalens/internal/repository"
	"datalens/pkg/logger"
)

// staleSampleSize bounds how many stale datasets are named in each report.
const staleSampleSize = 20

// StaleDatasetWorker reports datasets stuck in "processing" for longer than
// staleAfter and publishes their count for the stats endpoint. It never changes
// dataset rows.
type StaleDatasetWorker struct {
	datasets   repository.DatasetRepository
	cache      repository.CacheRepository
	interval   time.Duration
	staleAfter time.Duration
	log        *logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewStaleDatasetWorker(
	datasets repository.DatasetRepository,
	cache repository.CacheRepository,
	interval, staleAfter time.Duration,
	log *logger.Logger,
) *StaleDatasetWorker {
	return &StaleDatasetWorker{
		datasets:   datasets,
		cache:      cache,
		interval:   interval,
		staleAfter: staleAfter,
		log:        log.With("worker", "stale_datasets"),
		now:        time.Now,
	}
}

func (w *StaleDatasetWorker) Name() string { return "stale_datasets" }

func (w *StaleDatasetWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.log.Info("stale dataset monitor started", "interval", w.interval, "stale_after", w.staleAfter)

	w.Check(context.Background())
	go w.run()
}

func (w *StaleDatasetWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
	w.log.Info("stale dataset monitor stopped")
}

func (w *StaleDatasetWorker) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(context.Background())
		case <-w.stopChan:
			return
		}
	}
}

// Check runs one pass and returns the number of stale datasets found.
func (w *StaleDatasetWorker) Check(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := w.now().UTC().Add(-w.staleAfter)
	count, err := w.datasets.CountStale(ctx, cutoff)
	if err != nil {
		w.log.Error("count stale datasets failed", "error", err)
		return 0
	}

	if w.cache != nil {
		// expires after two intervals; readers then fall back to a live count
		if err := w.cache.Set(ctx, repository.StaleDatasetsKey, strconv.FormatInt(count, 10), 2*w.interval); err != nil {
			w.log.Warn("publish stale dataset count failed", "error", err)
		}
	}

	if count == 0 {
		w.log.Debug("no stale datasets")
		return 0
	}

	stale, err := w.datasets.ListStale(ctx, cutoff, staleSampleSize)
	if err != nil {
		w.log.Error("list stale datasets failed", "error", err)
		return count
	}
	for _, d := range stale {
		w.log.Warn("dataset stuck in processing",
			"dataset_id", d.ID,
			"user_id", d.UserID,
			"file_type", d.FileType,
			"since", d.CreatedAt,
		)
	}
	return count
}
