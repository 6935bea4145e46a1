// Package scheduler runs periodic background jobs, currently the dataset
// change poll that triggers a reload when the files on disk change.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/models"
	"namaste-icd-mapper/utils"
)

const DatasetPollTag = "dataset-reload"

// Reloader is the part of the mapping service the dataset poll drives.
type Reloader interface {
	DatasetPaths() []string
	DatasetVersion() string
	Reload(ctx context.Context, trigger string) (*models.ReloadResponse, error)
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels running jobs' context.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob schedules a job on a cron expression ("*/5 * * * *" or "@every 5m").
func (s *Scheduler) ScheduleJob(tag string, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}

func (s *Scheduler) ScheduleInterval(tag string, duration time.Duration, job func() error) error {
	_, err := s.scheduler.Every(duration).Tag(tag).Do(job)
	return err
}

func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

func (s *Scheduler) GetJobs() []*gocron.Job {
	return s.scheduler.Jobs()
}

// ScheduleDatasetPoll checks the datasets on cronExpr and reloads on change.
func (s *Scheduler) ScheduleDatasetPoll(cronExpr string, r Reloader) error {
	return s.ScheduleJob(DatasetPollTag, cronExpr, func() error {
		ctx, cancel := utils.WithLongTimeout(s.ctx)
		defer cancel()

		_, err := PollDatasets(ctx, r)
		if err != nil {
			logger.Warn("Dataset poll failed", "error", err)
		}
		return err
	})
}

// PollDatasets reloads when the checksum of the files on disk differs from
// the version being served. It reports whether a reload happened. Nothing is
// done before the first load.
func PollDatasets(ctx context.Context, r Reloader) (bool, error) {
	current := r.DatasetVersion()
	if current == "" {
		return false, nil
	}
	onDisk := utils.CombinedChecksum(r.DatasetPaths()...)
	if onDisk == current {
		return false, nil
	}

	logger.Info("Dataset change detected", "trigger", "poll")
	if _, err := r.Reload(ctx, "poll"); err != nil {
		return false, err
	}
	return true, nil
}
