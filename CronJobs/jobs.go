package CronJobs

import (
	"fmt"
	"log"
	"time"

	"Rondin/Controllers"
	"Rondin/Deadlines"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// MissedTaskSweeper moves overdue pending tasks to missed on a nightly schedule
type MissedTaskSweeper struct {
	cronScheduler  *cron.Cron
	db             *gorm.DB
	deadlines      *Deadlines.Evaluator
	runImmediately bool
	jobID          cron.EntryID
}

// NewMissedTaskSweeper creates a new sweeper with the given configuration
func NewMissedTaskSweeper(db *gorm.DB, deadlines *Deadlines.Evaluator, runImmediately bool) *MissedTaskSweeper {
	return &MissedTaskSweeper{
		cronScheduler:  cron.New(cron.WithSeconds()),
		db:             db,
		deadlines:      deadlines,
		runImmediately: runImmediately,
	}
}

// Start initiates the sweeper cron job, daily at 00:05 civil time
func (s *MissedTaskSweeper) Start() error {
	var err error
	s.jobID, err = s.cronScheduler.AddFunc("0 5 0 * * *", func() {
		log.Println("Running scheduled missed-task sweep")
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("error scheduling cron job: %w", err)
	}

	s.cronScheduler.Start()
	log.Println("Missed-task sweeper started - will run daily at 00:05")

	if s.runImmediately {
		s.RunManualSweep()
	}

	return nil
}

// Stop terminates the sweeper
func (s *MissedTaskSweeper) Stop() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
		log.Println("Missed-task sweeper stopped")
	}
}

// RunManualSweep executes a sweep outside the schedule
func (s *MissedTaskSweeper) RunManualSweep() {
	log.Println("Running manual missed-task sweep")
	s.runSweep()
}

// runSweep executes the sweep for yesterday and earlier, unscoped
func (s *MissedTaskSweeper) runSweep() {
	target := s.deadlines.Today(time.Now().Add(-24 * time.Hour))
	updated, err := Controllers.SweepMissedTasks(s.db, target, nil)
	if err != nil {
		log.Printf("Error in missed-task sweep: %v", err)
		return
	}
	log.Printf("Missed-task sweep for %s marked %d tasks", target, updated)
}
