package attendance

import (
	"context"
	"fmt"
	"time"
)

const (
	// AbsentMarker is shown in place of a missing in or out time.
	AbsentMarker = "--"

	StatusAbsent = "Absent"

	clockLayout = "15:04:05"
)

// SummaryRow is one employee's attendance for a day.
type SummaryRow struct {
	EmployeeID int64
	Name       string
	Department string
	InTime     string
	OutTime    string
	Status     string
}

// BuildSummary collapses one employee's events for a day into in/out/status.
// events must be sorted oldest first; scans between the first and last are
// not reported.
func BuildSummary(emp Employee, events []Event, loc *time.Location) SummaryRow {
	row := SummaryRow{
		EmployeeID: emp.ID,
		Name:       emp.Name,
		Department: emp.Department,
		InTime:     AbsentMarker,
		OutTime:    AbsentMarker,
		Status:     StatusAbsent,
	}
	if len(events) == 0 {
		return row
	}
	row.Status = StatusPresent
	row.InTime = events[0].When.In(loc).Format(clockLayout)
	if len(events) > 1 {
		row.OutTime = events[len(events)-1].When.In(loc).Format(clockLayout)
	}
	return row
}

// DayBounds returns the start of day's local calendar date and the start of
// the next one.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// DailySummary returns one row per active employee for day's local date, in
// store order.
func (s *Service) DailySummary(ctx context.Context, day time.Time) ([]SummaryRow, error) {
	employees, err := s.repo.ListEmployees(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	from, to := DayBounds(day, s.loc)

	rows := make([]SummaryRow, 0, len(employees))
	for _, emp := range employees {
		events, err := s.repo.EventsBetween(ctx, emp.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("events for employee %d: %w", emp.ID, err)
		}
		rows = append(rows, BuildSummary(emp, events, s.loc))
	}
	return rows, nil
}

// TodaySummary is DailySummary for the current local date.
func (s *Service) TodaySummary(ctx context.Context) ([]SummaryRow, error) {
	return s.DailySummary(ctx, s.Now())
}
