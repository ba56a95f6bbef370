// Package jobs runs the periodic funnel jobs: the daily admin digest and the
// joy keys nudge sweep.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/metrics"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job names, also used as metric labels
const (
	DigestJob = "digest"
	NudgeJob  = "nudge_sweep"
)

const jobTimeout = 5 * time.Minute

// RunnerConfig contains configuration for Runner
type RunnerConfig struct {
	Funnel         store.FunnelStore
	Scheduler      *drip.Scheduler
	Sender         drip.MessageSender
	AdminEmail     string
	DigestSchedule string
	NudgeSchedule  string
	NudgeAfter     time.Duration
	Location       *time.Location
}

// Runner owns the cron scheduler and the job implementations.
type Runner struct {
	cron       *cron.Cron
	funnel     store.FunnelStore
	scheduler  *drip.Scheduler
	sender     drip.MessageSender
	adminEmail string
	nudgeAfter time.Duration
	now        func() time.Time
}

// NewRunner registers the jobs. Schedules use the standard five-field cron
// syntax or descriptors such as @hourly; an empty schedule disables the job.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.NudgeAfter <= 0 {
		cfg.NudgeAfter = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	logger := cron.PrintfLogger(zap.NewStdLog(zap.L().Named("cron")))
	r := &Runner{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		funnel:     cfg.Funnel,
		scheduler:  cfg.Scheduler,
		sender:     cfg.Sender,
		adminEmail: cfg.AdminEmail,
		nudgeAfter: cfg.NudgeAfter,
		now:        time.Now,
	}

	if err := r.add(DigestJob, cfg.DigestSchedule, r.SendDigest); err != nil {
		return nil, err
	}
	if err := r.add(NudgeJob, cfg.NudgeSchedule, func(ctx context.Context) error {
		_, err := r.NudgeSweep(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) add(name, schedule string, job func(ctx context.Context) error) error {
	if schedule == "" {
		zap.L().Info("Job disabled", zap.String("job", name))
		return nil
	}
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		r.run(ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, schedule, err)
	}
	zap.L().Info("Job scheduled", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

func (r *Runner) run(ctx context.Context, name string, job func(ctx context.Context) error) {
	start := time.Now()
	err := job(ctx)
	metrics.RecordJob(name, err == nil)
	if err != nil {
		zap.L().Error("Job failed", zap.String("job", name), zap.Error(err))
		return
	}
	zap.L().Info("Job complete", zap.String("job", name), zap.Duration("duration", time.Since(start)))
}

// Entries returns how many jobs are scheduled.
func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		zap.L().Warn("Timed out waiting for running jobs")
	}
}

// SendDigest emails the administrator the funnel counters for the last 24 hours.
func (r *Runner) SendDigest(ctx context.Context) error {
	if r.adminEmail == "" {
		zap.L().Debug("No admin email configured, skipping digest")
		return nil
	}

	since := r.now().Add(-24 * time.Hour)
	stats, err := r.funnel.Stats(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	_, err = r.sender.Send(ctx, messaging.Message{
		Channel: models.ChannelEmail,
		To:      r.adminEmail,
		Subject: fmt.Sprintf("Funnel digest for %s", r.now().Format("Mon Jan 2")),
		Body:    FormatDigest(stats),
	})
	if err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	return nil
}

// FormatDigest renders the plain text digest body.
func FormatDigest(s *models.FunnelStats) string {
	return fmt.Sprintf(`Funnel activity since %s

New participants:   %d (total %d)
Paid orders:        %d
Revenue:            $%s
Referrals:          %d (%d converted)
Messages sent:      %d
Messages failed:    %d
Clips to review:    %d
`,
		s.Since.Format(time.RFC1123),
		s.NewParticipants, s.Participants,
		s.PaidOrders,
		s.Revenue.StringFixed(2),
		s.Referrals, s.ConvertedReferral,
		s.MessagesSent,
		s.MessagesFailed,
		s.PendingClips)
}

// NudgeSweep enrolls participants who have not unlocked a joy key recently into
// the nudge campaign. Enrollment is unique per campaign, so repeated sweeps only
// pick up newly stalled participants.
func (r *Runner) NudgeSweep(ctx context.Context) (int, error) {
	stalled, err := r.funnel.ListStalledJoyKeys(ctx, r.now().Add(-r.nudgeAfter))
	if err != nil {
		return 0, err
	}

	enrolled := 0
	for _, keys := range stalled {
		_, err := r.scheduler.Enroll(ctx, keys.ParticipantId, drip.NudgeCampaign, r.now())
		switch {
		case err == nil:
			enrolled++
		case errors.Is(err, store.ErrDuplicate):
		default:
			return enrolled, fmt.Errorf("failed to enroll %s: %w", keys.ParticipantId, err)
		}
	}

	if enrolled > 0 {
		zap.L().Info("Nudge sweep enrolled participants",
			zap.Int("stalled", len(stalled)),
			zap.Int("enrolled", enrolled))
	}
	return enrolled, nil
}
