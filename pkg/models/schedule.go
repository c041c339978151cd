package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType selects how the next firing time is derived.
type ScheduleType string

const (
	ScheduleTypeInterval ScheduleType = "interval"
	ScheduleTypeCron     ScheduleType = "cron"
	ScheduleTypeOnce     ScheduleType = "once"
)

var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrScheduleParse is returned (wrapped) when a cron expression cannot
	// be parsed. Recalculation recovers from it with a fallback; it is
	// surfaced so callers can log the bad expression.
	ErrScheduleParse = errors.New("unparsable cron expression")
)

// cronFallback is how far ahead NextRunAfter pushes a schedule whose cron
// expression does not parse, instead of failing the whole sweep.
const cronFallback = time.Hour

// Schedule is a recurring or one-shot trigger definition for a workflow.
// NextRun is precomputed so the sweeper can query due schedules cheaply.
type Schedule struct {
	ID          string `json:"id"          validate:"required"`
	WorkflowID  string `json:"workflow_id" validate:"required"`
	Name        string `json:"name"        validate:"required"`
	Description string `json:"description"`

	Type ScheduleType `json:"type" validate:"required,oneof=interval cron once"`

	// Exactly one of the following is meaningful, depending on Type.
	IntervalMinutes int        `json:"interval_minutes,omitempty"`
	CronExpression  string     `json:"cron_expression,omitempty"`
	ScheduledTime   *time.Time `json:"scheduled_time,omitempty"`

	Input map[string]any `json:"input,omitempty"`

	Enabled  bool       `json:"is_enabled"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	RunCount int        `json:"run_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// cronParser accepts the standard 5-field format (minute hour dom month dow).
func cronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// NextRunAfter computes the next firing time relative to now.
//
//   - interval: last run (or now, if never run) plus the interval.
//   - cron: next fire time strictly after now; a malformed expression falls
//     back to now plus one hour together with a ScheduleParse error so the
//     caller can log it. The fallback time is still returned.
//   - once: the fixed scheduled time, unconditionally. It never advances;
//     the sweeper disables the schedule after one firing.
func (s *Schedule) NextRunAfter(now time.Time) (time.Time, error) {
	switch s.Type {
	case ScheduleTypeInterval:
		base := now
		if s.LastRun != nil {
			base = *s.LastRun
		}

		return base.Add(time.Duration(s.IntervalMinutes) * time.Minute), nil

	case ScheduleTypeCron:
		parsed, err := cronParser().Parse(s.CronExpression)
		if err != nil {
			return now.Add(cronFallback), ErrScheduleParse
		}

		return parsed.Next(now), nil

	case ScheduleTypeOnce:
		if s.ScheduledTime == nil {
			return time.Time{}, ErrInvalidSchedule
		}

		return *s.ScheduledTime, nil

	default:
		return now.Add(cronFallback), ErrInvalidSchedule
	}
}

// Recalculate updates NextRun from now. The parse fallback is applied, not
// propagated as a failure.
func (s *Schedule) Recalculate(now time.Time) error {
	next, err := s.NextRunAfter(now)
	if err != nil && errors.Is(err, ErrInvalidSchedule) {
		return err
	}

	s.NextRun = &next
	s.UpdatedAt = now

	return err
}

// RecordFiring stamps one firing of the schedule.
func (s *Schedule) RecordFiring(now time.Time) {
	fired := now
	s.LastRun = &fired
	s.RunCount++

	// A one-shot schedule must not refire.
	if s.Type == ScheduleTypeOnce {
		s.Enabled = false
	}
}

// IsDue reports whether the schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Enabled && s.NextRun != nil && !s.NextRun.After(now)
}

// Validate checks the type-specific fields.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" {
		return ErrInvalidSchedule
	}

	switch s.Type {
	case ScheduleTypeInterval:
		if s.IntervalMinutes <= 0 {
			return ErrInvalidSchedule
		}
	case ScheduleTypeCron:
		if _, err := cronParser().Parse(s.CronExpression); err != nil {
			return err
		}
	case ScheduleTypeOnce:
		if s.ScheduledTime == nil {
			return ErrInvalidSchedule
		}
	default:
		return ErrInvalidSchedule
	}

	return nil
}
