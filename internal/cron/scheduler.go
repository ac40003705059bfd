package cron

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ipgconnect/internal/config"
	"ipgconnect/internal/models"
	"ipgconnect/internal/relay"
)

const (
	// maxReportLines caps the stale-pending report so it fits one Telegram message.
	maxReportLines = 30

	// Records younger than relayGrace may still be in their first relay attempt.
	relayGrace     = 2 * time.Minute
	relayBatchSize = 100
)

// CallbackMaintenance is the storage side the scheduled jobs work on.
type CallbackMaintenance interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
	FindStalePending(cutoff time.Time) ([]models.CallbackRecord, error)
	FindUnrelayed(cutoff time.Time, limit int) ([]models.CallbackRecord, error)
	MarkRelayed(id uint, at time.Time) error
}

// Reporter posts a text report to the admin chat.
type Reporter interface {
	SendMessage(ctx context.Context, chatID, text string) (string, error)
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	retention config.RetentionConfig
	chatID    string
	callbacks CallbackMaintenance
	relay     relay.Relayer
	reporter  Reporter
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	reported map[uint]struct{}
}

// New creates a new cron scheduler. relayer and reporter may be nil, which
// disables the re-relay job and the pending report.
func New(cfg *config.Config, callbacks CallbackMaintenance, relayer relay.Relayer, reporter Reporter, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		retention: cfg.Retention,
		chatID:    cfg.Report.ChatID,
		callbacks: callbacks,
		relay:     relayer,
		reporter:  reporter,
		logger:    logger,
		now:       time.Now,
		reported:  make(map[uint]struct{}),
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	// Retention purge - daily at 3 AM
	if _, err := s.cron.AddFunc("0 0 3 * * *", func() {
		s.logger.Debug("Running: purge old callbacks")
		s.purgeOldCallbacks()
	}); err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}

	// Re-relay stored outcomes order processing never acknowledged - every 5 minutes
	if s.relay != nil {
		if _, err := s.cron.AddFunc("0 */5 * * * *", func() {
			s.logger.Debug("Running: re-relay callbacks")
			s.relayPending(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule re-relay: %w", err)
		}
	}

	// Stale pending report - every 15 minutes
	if _, err := s.cron.AddFunc("0 */15 * * * *", func() {
		s.logger.Debug("Running: stale pending report")
		s.reportStalePending(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule pending report: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops the cron scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ── Retention purge ──────────────────────────────────────────────────

func (s *Scheduler) purgeOldCallbacks() {
	defer s.recoverFromPanic("purgeOldCallbacks")

	if s.retention.Days <= 0 {
		return
	}
	cutoff := s.now().AddDate(0, 0, -s.retention.Days)
	deleted, err := s.callbacks.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Error("Failed to purge old callbacks", zap.Time("cutoff", cutoff), zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("Purged old callbacks", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}

// ── Re-relay ─────────────────────────────────────────────────────────

// relayPending retries delivery of stored callbacks whose relay failed. A
// failure ends the run so an unreachable webhook is not hammered.
func (s *Scheduler) relayPending(ctx context.Context) {
	defer s.recoverFromPanic("relayPending")

	if s.relay == nil {
		return
	}

	records, err := s.callbacks.FindUnrelayed(s.now().Add(-relayGrace), relayBatchSize)
	if err != nil {
		s.logger.Error("Failed to load unrelayed callbacks", zap.Error(err))
		return
	}

	relayed := 0
	for _, r := range records {
		if err := s.relay.Relay(ctx, relay.FromRecord(r)); err != nil {
			s.logger.Warn("Re-relay failed, will retry on next run",
				zap.Uint("id", r.ID),
				zap.String("oid", r.OrderID),
				zap.Int("remaining", len(records)-relayed),
				zap.Error(err),
			)
			return
		}
		if err := s.callbacks.MarkRelayed(r.ID, s.now()); err != nil {
			s.logger.Error("Failed to mark callback relayed", zap.Uint("id", r.ID), zap.Error(err))
			return
		}
		relayed++
	}

	if relayed > 0 {
		s.logger.Info("Re-relayed callbacks", zap.Int("count", relayed))
	}
}

// ── Stale pending report ─────────────────────────────────────────────

// reportStalePending announces orders whose latest callback has been
// pending longer than the configured threshold. Each record is announced once.
func (s *Scheduler) reportStalePending(ctx context.Context) {
	defer s.recoverFromPanic("reportStalePending")

	if s.reporter == nil || s.chatID == "" || s.retention.PendingReportAfter <= 0 {
		return
	}

	cutoff := s.now().Add(-s.retention.PendingReportAfter)
	records, err := s.callbacks.FindStalePending(cutoff)
	if err != nil {
		s.logger.Error("Failed to load stale pending callbacks", zap.Error(err))
		return
	}

	s.mu.Lock()
	current := make(map[uint]struct{}, len(records))
	fresh := make([]models.CallbackRecord, 0, len(records))
	for _, r := range records {
		current[r.ID] = struct{}{}
		if _, done := s.reported[r.ID]; !done {
			fresh = append(fresh, r)
		}
	}
	// Orders that left pending drop out of the set.
	s.reported = current
	s.mu.Unlock()

	if len(fresh) == 0 {
		return
	}

	if _, err := s.reporter.SendMessage(ctx, s.chatID, stalePendingReport(fresh, s.now())); err != nil {
		s.logger.Warn("Failed to send stale pending report", zap.Error(err))
		s.mu.Lock()
		for _, r := range fresh {
			delete(s.reported, r.ID)
		}
		s.mu.Unlock()
	}
}

func stalePendingReport(records []models.CallbackRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏳ <b>Pending payments</b>: %d\n", len(records))
	for i, r := range records {
		if i == maxReportLines {
			fmt.Fprintf(&b, "\n… and %d more", len(records)-maxReportLines)
			break
		}
		fmt.Fprintf(&b, "\n• %s (%s, %s ago)",
			html.EscapeString(r.OrderID),
			html.EscapeString(r.Variant),
			now.Sub(r.ReceivedAt).Truncate(time.Minute))
	}
	return b.String()
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
