package Deadlines

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultTimeOfDay is used when a task carries no deadline snapshot: tasks are
// due at the end of the civil day, not at midnight.
const DefaultTimeOfDay = "23:59:59"

// DefaultOffsetHours is the operating region's civil UTC offset.
const DefaultOffsetHours = -5

type Result string

const (
	OnTime Result = "ON_TIME"
	Late   Result = "LATE"
)

// Evaluator resolves deadlines in a fixed civil UTC offset. The offset is
// explicit configuration so other regions (and tests) can use their own.
type Evaluator struct {
	zone *time.Location
}

func NewEvaluator(offsetHours int) *Evaluator {
	name := fmt.Sprintf("UTC%+03d", offsetHours)
	return &Evaluator{zone: time.FixedZone(name, offsetHours*3600)}
}

// OffsetHoursFromEnv reads CIVIL_UTC_OFFSET, falling back to the default.
func OffsetHoursFromEnv() int {
	if s := os.Getenv("CIVIL_UTC_OFFSET"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return DefaultOffsetHours
}

// DeadlineInstant resolves a scheduled date plus time-of-day snapshot to the
// UTC instant the task is due.
func (e *Evaluator) DeadlineInstant(scheduledDate, timeOfDay string) (time.Time, error) {
	if timeOfDay == "" {
		timeOfDay = DefaultTimeOfDay
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", scheduledDate+" "+timeOfDay, e.zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q %q: %w", scheduledDate, timeOfDay, err)
	}
	return t.UTC(), nil
}

// Classify compares a reference instant against the task deadline.
func (e *Evaluator) Classify(scheduledDate, timeOfDay string, now time.Time) (Result, error) {
	deadline, err := e.DeadlineInstant(scheduledDate, timeOfDay)
	if err != nil {
		return "", err
	}
	if now.After(deadline) {
		return Late, nil
	}
	return OnTime, nil
}

// Today returns the current calendar date in the civil offset, YYYY-MM-DD.
func (e *Evaluator) Today(now time.Time) string {
	return now.In(e.zone).Format("2006-01-02")
}
