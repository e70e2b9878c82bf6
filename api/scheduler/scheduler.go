package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/databases"
)

// DefaultHealthCheckSchedule runs the store probe every minute
const DefaultHealthCheckSchedule = "@every 1m"

// AttendanceReportSchedule logs check-in totals every quarter hour
const AttendanceReportSchedule = "*/15 * * * *"

// probeTimeout bounds a single ping
const probeTimeout = 5 * time.Second

// Scheduler runs the store health probe and the attendance report
type Scheduler struct {
	cron       *cron.Cron
	Client     databases.ClientHelper
	RDB        databases.RegistrationDatabase
	instanceID string

	healthy  atomic.Bool
	failures atomic.Int64
}

// NewScheduler creates a scheduler that starts out reporting the store as healthy
func NewScheduler(client databases.ClientHelper, rdb databases.RegistrationDatabase) *Scheduler {
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Client:     client,
		RDB:        rdb,
		instanceID: instanceID,
	}
	s.healthy.Store(true)
	return s
}

// Start registers the jobs and starts the cron runner
func (s *Scheduler) Start(healthSchedule string) error {
	if healthSchedule == "" {
		healthSchedule = DefaultHealthCheckSchedule
	}
	if _, err := s.cron.AddFunc(healthSchedule, s.CheckStore); err != nil {
		return fmt.Errorf("failed to register store health job: %w", err)
	}
	if s.RDB != nil {
		if _, err := s.cron.AddFunc(AttendanceReportSchedule, s.ReportAttendance); err != nil {
			return fmt.Errorf("failed to register attendance report job: %w", err)
		}
	}

	s.cron.Start()
	zap.S().Infow("scheduler started", "instance", s.instanceID, "healthSchedule", healthSchedule)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// Healthy reports the outcome of the last store probe
func (s *Scheduler) Healthy() bool {
	return s.healthy.Load()
}

// CheckStore pings MongoDB and records the result. The driver reconnects on
// its own, the probe only makes an outage visible in logs and on /health.
func (s *Scheduler) CheckStore() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := s.Client.Ping(ctx); err != nil {
		n := s.failures.Add(1)
		if s.healthy.Swap(false) {
			zap.S().Errorw("registration store unreachable", "instance", s.instanceID, "error", err)
		} else {
			zap.S().Warnw("registration store still unreachable", "instance", s.instanceID, "consecutiveFailures", n, "error", err)
		}
		return
	}
	if !s.healthy.Swap(true) {
		zap.S().Infow("registration store reachable again", "instance", s.instanceID, "failedProbes", s.failures.Load())
	}
	s.failures.Store(0)
}

// ReportAttendance logs how many registrations exist and how many are verified
func (s *Scheduler) ReportAttendance() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	total, err := s.RDB.CountDocuments(ctx, bson.M{})
	if err != nil {
		zap.S().Errorw("failed to count registrations", "error", err)
		return
	}
	verified, err := s.RDB.CountDocuments(ctx, bson.M{"verified": true})
	if err != nil {
		zap.S().Errorw("failed to count verified registrations", "error", err)
		return
	}
	zap.S().Infow("attendance report", "instance", s.instanceID, "registrations", total, "verified", verified)
}
