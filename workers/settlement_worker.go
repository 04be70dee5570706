package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pvp-battle-server/models"
	"pvp-battle-server/services"
)

// BattleRecorder persists a settlement. It must be idempotent per battle.
type BattleRecorder interface {
	RecordBattleResult(ctx context.Context, s models.Settlement, reportURL string) error
}

// ReportArchiver stores the final battle snapshot and returns where.
type ReportArchiver interface {
	ArchiveBattleReport(ctx context.Context, snap models.BattleSnapshot) (string, error)
}

const (
	DefaultSettlementBackoff = 500 * time.Millisecond
	settlementDrainTimeout   = 10 * time.Second
)

// SettlementWorker persists finished battles off the combat path. Enqueue
// never blocks; persistence failures are retried and then logged, and never
// affect the battle.end already delivered to the players.
type SettlementWorker struct {
	recorder    BattleRecorder
	archive     ReportArchiver // nil disables archiving
	queue       chan models.Settlement
	maxAttempts int
	backoff     time.Duration
	metrics     *services.Metrics
	logger      *logrus.Entry
	wg          sync.WaitGroup
}

func NewSettlementWorker(recorder BattleRecorder, archive ReportArchiver, size, maxAttempts int, metrics *services.Metrics) *SettlementWorker {
	if size < 1 {
		size = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SettlementWorker{
		recorder:    recorder,
		archive:     archive,
		queue:       make(chan models.Settlement, size),
		maxAttempts: maxAttempts,
		backoff:     DefaultSettlementBackoff,
		metrics:     metrics,
		logger:      logrus.WithField("component", "settlement_worker"),
	}
}

// Enqueue hands s to the worker. It reports false when the buffer is full.
func (w *SettlementWorker) Enqueue(s models.Settlement) bool {
	select {
	case w.queue <- s:
		return true
	default:
		return false
	}
}

// Start consumes settlements until ctx is cancelled, then drains whatever
// is still buffered.
func (w *SettlementWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("settlement worker started")
		for {
			select {
			case <-ctx.Done():
				w.drain()
				w.logger.Info("settlement worker stopped")
				return
			case s := <-w.queue:
				w.process(ctx, s)
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (w *SettlementWorker) Wait() {
	w.wg.Wait()
}

func (w *SettlementWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), settlementDrainTimeout)
	defer cancel()
	for {
		select {
		case s := <-w.queue:
			w.process(ctx, s)
		default:
			return
		}
	}
}

func (w *SettlementWorker) process(ctx context.Context, s models.Settlement) {
	log := w.logger.WithField("battle_id", s.BattleID)

	reportURL := ""
	if w.archive != nil {
		url, err := w.archive.ArchiveBattleReport(ctx, s.Snapshot)
		if err != nil {
			log.WithError(err).Warn("battle report not archived")
		} else {
			reportURL = url
		}
	}

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.recorder.RecordBattleResult(ctx, s, reportURL)
		if err == nil {
			w.metrics.SettlementResult("ok")
			return
		}
		log.WithError(err).WithField("attempt", attempt).Warn("settlement failed")
		if attempt == w.maxAttempts {
			break
		}
		w.metrics.SettlementResult("retry")

		select {
		case <-ctx.Done():
			w.metrics.SettlementResult("failed")
			log.WithError(ctx.Err()).Error("settlement abandoned")
			return
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	w.metrics.SettlementResult("failed")
	log.Error("settlement dropped after retries")
}
