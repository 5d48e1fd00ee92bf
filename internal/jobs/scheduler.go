package jobs

import (
	"context"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedules use the six-field (seconds first) cron format, in UTC.
const (
	OTPCleanupSchedule  = "0 0 * * * *"
	StatsReportSchedule = "0 30 6 * * *"

	jobTimeout = 2 * time.Minute
)

type OTPCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type StatsSource interface {
	Stats(ctx context.Context) (*models.AdminStats, error)
}

// Scheduler runs periodic housekeeping.
type Scheduler struct {
	cron  *cron.Cron
	otp   OTPCleaner
	stats StatsSource
	log   *zap.Logger
}

// NewScheduler registers the jobs whose dependencies are present. otp may be
// nil when verification codes are disabled.
func NewScheduler(otp OTPCleaner, stats StatsSource, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		otp:   otp,
		stats: stats,
		log:   log,
	}
	if otp != nil {
		if _, err := s.cron.AddFunc(OTPCleanupSchedule, s.CleanupOTPs); err != nil {
			return nil, err
		}
	}
	if stats != nil {
		if _, err := s.cron.AddFunc(StatsReportSchedule, s.ReportStats); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("✅ Cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Cron scheduler stopped")
}

// CleanupOTPs deletes expired and consumed verification codes.
func (s *Scheduler) CleanupOTPs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.otp.CleanupExpired(ctx)
	if err != nil {
		s.log.Error("otp cleanup failed", zap.Error(err))
		return
	}
	s.log.Info("otp cleanup finished", zap.Int64("deleted", n))
}

// ReportStats logs the dashboard aggregate once a day.
func (s *Scheduler) ReportStats() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	st, err := s.stats.Stats(ctx)
	if err != nil {
		s.log.Error("daily stats failed", zap.Error(err))
		return
	}
	s.log.Info("📊 daily complaint summary",
		zap.Int64("users", st.TotalUsers),
		zap.Int64("complaints", st.TotalComplaints),
		zap.Int64("pending", st.PendingComplaints),
		zap.Int64("in_progress", st.InProgressComplaints),
		zap.Int64("resolved", st.ResolvedComplaints),
		zap.Int64("closed", st.ClosedComplaints),
		zap.Int64("complaints_last_30_days", st.ComplaintsLast30Days),
	)
}
