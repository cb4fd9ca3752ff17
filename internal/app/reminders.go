package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

const (
	reminderBatchTimeout = 2 * time.Minute
	releaseTimeout       = 5 * time.Second

	outcomeSent        = "sent"
	outcomeFailed      = "failed"
	skipAlreadyClaimed = "already_claimed"
	skipProfileMissing = "profile_missing"
)

// Leader decides which instance runs the reminder batch. The holder must call
// Renew every RenewInterval to keep the lease.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
	RenewInterval() time.Duration
}

type ReminderBatch struct {
	Due     int
	Sent    int
	Skipped int
	Failed  int
}

// ReminderScheduler notifies both parties of confirmed appointments once,
// ahead of their start.
type ReminderScheduler struct {
	appointments domain.AppointmentRepository
	profiles     domain.ProfileRepository
	notifier     domain.Notifier
	ledger       domain.ReminderLedger
	leader       Leader
	clock        clockwork.Clock
	interval     time.Duration
	leadTime     time.Duration
	metrics      *metrics.ReminderMetrics

	leading atomic.Bool

	mu          sync.Mutex
	cancelBatch context.CancelFunc
}

// NewReminderScheduler creates a scheduler. leader and m may be nil; without
// a leader every instance runs the batch and the ledger alone prevents
// duplicates.
func NewReminderScheduler(
	appointments domain.AppointmentRepository,
	profiles domain.ProfileRepository,
	notifier domain.Notifier,
	ledger domain.ReminderLedger,
	leader Leader,
	clock clockwork.Clock,
	interval, leadTime time.Duration,
	m *metrics.ReminderMetrics,
) *ReminderScheduler {
	return &ReminderScheduler{
		appointments: appointments,
		profiles:     profiles,
		notifier:     notifier,
		ledger:       ledger,
		leader:       leader,
		clock:        clock,
		interval:     interval,
		leadTime:     leadTime,
		metrics:      m,
	}
}

// Run executes a batch now and then every interval until ctx is cancelled.
// With a leader, the lease is renewed on its own ticker so it outlives the
// batch interval.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	if s.leader != nil {
		leaseCtx, stopLease := context.WithCancel(ctx)
		leaseDone := make(chan struct{})
		go func() {
			defer close(leaseDone)
			s.keepLease(leaseCtx)
		}()
		defer func() {
			stopLease()
			<-leaseDone
			s.release()
		}()
	}

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *ReminderScheduler) tick(ctx context.Context) {
	ctx = correlation.WithID(ctx, correlation.NewID())
	if !s.acquire(ctx) {
		slog.DebugContext(ctx, "Not the reminder leader, skipping batch")
		return
	}

	batchCtx, cancel := context.WithTimeout(ctx, reminderBatchTimeout)
	defer cancel()
	s.setBatchCancel(cancel)
	defer s.setBatchCancel(nil)

	if _, err := s.RunBatch(batchCtx, false); err != nil {
		slog.ErrorContext(ctx, "Reminder batch failed", "error", err)
	}
}

func (s *ReminderScheduler) setBatchCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelBatch = cancel
}

func (s *ReminderScheduler) stopRunningBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelBatch != nil {
		s.cancelBatch()
	}
}

func (s *ReminderScheduler) acquire(ctx context.Context) bool {
	if s.leader == nil || s.leading.Load() {
		return true
	}

	ok, err := s.leader.TryAcquire(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Reminder leader election failed", "error", err)
		return false
	}
	if ok {
		slog.InfoContext(ctx, "Acquired reminder leadership")
	}
	s.leading.Store(ok)
	return ok
}

// keepLease renews the lease while this instance leads. A failed renewal
// drops leadership and stops the running batch, since another instance may
// already hold the lock.
func (s *ReminderScheduler) keepLease(ctx context.Context) {
	ticker := s.clock.NewTicker(s.leader.RenewInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !s.leading.Load() {
				continue
			}
			if err := s.leader.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "Lost reminder leadership", "error", err)
				s.leading.Store(false)
				s.stopRunningBatch()
			}
		}
	}
}

func (s *ReminderScheduler) release() {
	if !s.leading.Swap(false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := s.leader.Release(ctx); err != nil {
		slog.Warn("Failed to release reminder leadership", "error", err)
	}
}

// RunBatch reminds every confirmed appointment starting within the lead time.
// With dryRun the due appointments are only counted and logged.
func (s *ReminderScheduler) RunBatch(ctx context.Context, dryRun bool) (ReminderBatch, error) {
	start := s.clock.Now()
	var batch ReminderBatch
	defer func() {
		if s.metrics != nil {
			s.metrics.Batches.Inc()
			s.metrics.BatchDuration.Observe(s.clock.Since(start).Seconds())
		}
	}()

	due, err := s.appointments.ListDueReminders(ctx, start, start.Add(s.leadTime))
	if err != nil {
		return batch, fmt.Errorf("list due reminders: %w", err)
	}
	batch.Due = len(due)

	for i := range due {
		appt := &due[i]
		if dryRun {
			slog.InfoContext(ctx, "Reminder due", "appointment_id", appt.ID, "starts_at", appt.StartsAt)
			continue
		}

		switch s.remind(ctx, appt, start) {
		case outcomeSent:
			batch.Sent++
		case outcomeFailed:
			batch.Failed++
		default:
			batch.Skipped++
		}
	}

	slog.InfoContext(ctx, "Reminder batch finished",
		"due", batch.Due, "sent", batch.Sent, "skipped", batch.Skipped, "failed", batch.Failed, "dry_run", dryRun)
	return batch, nil
}

// remind returns outcomeSent, outcomeFailed or a skip reason.
func (s *ReminderScheduler) remind(ctx context.Context, appt *domain.Appointment, now time.Time) string {
	claimed, err := s.ledger.Claim(ctx, appt.ID, s.leadTime+s.interval)
	if err != nil {
		slog.WarnContext(ctx, "Reminder claim failed", "appointment_id", appt.ID, "error", err)
		s.countFailed()
		return outcomeFailed
	}
	if !claimed {
		s.countSkipped(skipAlreadyClaimed)
		return skipAlreadyClaimed
	}

	senior, err := s.profiles.GetByID(ctx, appt.SeniorID)
	if err != nil {
		s.countSkipped(skipProfileMissing)
		return skipProfileMissing
	}
	specialist, err := s.profiles.GetByID(ctx, appt.SpecialistID)
	if err != nil {
		s.countSkipped(skipProfileMissing)
		return skipProfileMissing
	}

	when := appt.StartsAt.Format(time.RFC1123)
	notes := []domain.Notification{
		{
			UserID:  senior.ID,
			Email:   senior.Email,
			Subject: "Reminder: tech help appointment",
			Body:    fmt.Sprintf("Your session with %s starts %s.", specialist.FullName, when),
		},
		{
			UserID:  specialist.ID,
			Email:   specialist.Email,
			Subject: "Reminder: upcoming appointment",
			Body:    fmt.Sprintf("Your session with %s starts %s. Issue: %s", senior.FullName, when, appt.Issue),
		},
	}
	for _, n := range notes {
		if err := s.notifier.Notify(ctx, n); err != nil {
			slog.WarnContext(ctx, "Reminder delivery failed", "appointment_id", appt.ID, "user_id", n.UserID, "error", err)
			if relErr := s.ledger.Release(ctx, appt.ID); relErr != nil {
				slog.WarnContext(ctx, "Failed to release reminder claim", "appointment_id", appt.ID, "error", relErr)
			}
			s.countFailed()
			return outcomeFailed
		}
	}

	if err := s.appointments.MarkReminderSent(ctx, appt.ID, now); err != nil {
		slog.WarnContext(ctx, "Failed to record reminder", "appointment_id", appt.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.Sent.Inc()
	}
	return outcomeSent
}

func (s *ReminderScheduler) countSkipped(reason string) {
	if s.metrics != nil {
		s.metrics.Skipped.WithLabelValues(reason).Inc()
	}
}

func (s *ReminderScheduler) countFailed() {
	if s.metrics != nil {
		s.metrics.Failed.Inc()
	}
}
