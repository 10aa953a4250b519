package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Scheduler wraps gocron for periodic full rebuilds. Scheduled runs document
// the branch head rather than a pinned commit, picking up toolchain changes
// that do not come with a push.
type Scheduler struct {
	scheduler gocron.Scheduler
	queue     *RunQueue
}

// NewScheduler creates a scheduler feeding the given queue.
func NewScheduler(queue *RunQueue) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, queue: queue}, nil
}

// SchedulePeriodicRun registers a repeating rebuild at the given interval.
func (s *Scheduler) SchedulePeriodicRun(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("schedule interval must be positive")
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.enqueueScheduledRun),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule periodic rebuild: %w", err)
	}
	slog.Info("Scheduled periodic rebuild", slog.Duration("interval", interval))
	return nil
}

func (s *Scheduler) enqueueScheduledRun() {
	req := &RunRequest{ID: uuid.NewString(), Reason: ReasonScheduled}
	if err := s.queue.Enqueue(req); err != nil {
		slog.Error("Failed to enqueue scheduled run", logfields.Error(err))
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running tasks.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
