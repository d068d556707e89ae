package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"faceattend/internal/faceclient"
	"faceattend/internal/facematch"
)

// StatusPresent is the only status a scan records.
const StatusPresent = "Present"

// Employee is an identity record with its face template.
type Employee struct {
	ID         int64
	Name       string
	Department string
	Encoding   facematch.Encoding
	Active     bool
}

// Event represents a recorded attendance event.
type Event struct {
	ID         int64
	EmployeeID int64
	When       time.Time
	Status     string
}

// LedgerRow is one event joined with its employee.
type LedgerRow struct {
	EventID    int64
	EmployeeID int64
	Name       string
	Department string
	When       time.Time
}

// Encoder extracts face encodings from an image.
type Encoder interface {
	Encode(ctx context.Context, image []byte) (*faceclient.EncodeResult, error)
}

// Outcome classifies a scan.
type Outcome string

const (
	OutcomeMarked        Outcome = "marked"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeNoFace        Outcome = "no_face"
	OutcomeNotRecognized Outcome = "not_recognized"
)

// ScanResult is what the scan page reports back to the user.
type ScanResult struct {
	Outcome  Outcome
	Message  string
	Employee *Employee
	Event    *Event
	Distance float64
}

// Success reports whether the scan identified someone.
func (r ScanResult) Success() bool {
	return r.Outcome == OutcomeMarked || r.Outcome == OutcomeDuplicate
}

// Options tune a Service.
type Options struct {
	// Location is the civil time zone for display and day boundaries.
	Location *time.Location
	// DedupWindow suppresses repeat scans of the same employee; zero
	// records every scan.
	DedupWindow time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Service coordinates scans, daily summaries and the ledger export.
type Service struct {
	repo        *Repository
	encoder     Encoder
	matcher     *facematch.Matcher
	loc         *time.Location
	dedupWindow time.Duration
	now         func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, encoder Encoder, matcher *facematch.Matcher, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if matcher == nil {
		matcher = facematch.NewMatcher(facematch.DefaultTolerance, facematch.PolicyFirst)
	}
	return &Service{
		repo:        repo,
		encoder:     encoder,
		matcher:     matcher,
		loc:         opts.Location,
		dedupWindow: opts.DedupWindow,
		now:         opts.Now,
	}
}

// Location returns the service's civil time zone.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the current time in the service's time zone.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// ProcessScan identifies the first face in frame among active employees and
// records an event for the match.
func (s *Service) ProcessScan(ctx context.Context, frame facematch.Frame) (ScanResult, error) {
	enc, err := s.encoder.Encode(ctx, frame.Data)
	if err != nil {
		return ScanResult{}, fmt.Errorf("encode frame: %w", err)
	}
	if len(enc.Encodings) == 0 {
		return ScanResult{Outcome: OutcomeNoFace, Message: "No face detected!"}, nil
	}
	probe := enc.Encodings[0]

	employees, err := s.repo.ListEmployees(ctx, true)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list employees: %w", err)
	}
	candidates := make([]facematch.Candidate, len(employees))
	byID := make(map[int64]Employee, len(employees))
	for i, e := range employees {
		candidates[i] = facematch.Candidate{EmployeeID: e.ID, Encoding: e.Encoding}
		byID[e.ID] = e
	}

	m, ok := s.matcher.Find(probe, candidates)
	if !ok {
		return ScanResult{Outcome: OutcomeNotRecognized, Message: "Employee not found."}, nil
	}
	emp := byID[m.EmployeeID]
	now := s.Now()

	if s.dedupWindow > 0 {
		recent, err := s.repo.RecentEvent(ctx, emp.ID, now.Add(-s.dedupWindow))
		if err != nil {
			return ScanResult{}, fmt.Errorf("recent event: %w", err)
		}
		if recent != nil {
			return ScanResult{
				Outcome:  OutcomeDuplicate,
				Message:  fmt.Sprintf("Already marked: %s at %s", emp.Name, recent.When.In(s.loc).Format("15:04")),
				Employee: &emp,
				Event:    recent,
				Distance: m.Distance,
			}, nil
		}
	}

	evt, err := s.repo.InsertEvent(ctx, Event{EmployeeID: emp.ID, When: now, Status: StatusPresent})
	if err != nil {
		return ScanResult{}, fmt.Errorf("insert event: %w", err)
	}
	return ScanResult{
		Outcome:  OutcomeMarked,
		Message:  fmt.Sprintf("Marked: %s at %s", emp.Name, now.Format("15:04")),
		Employee: &emp,
		Event:    &evt,
		Distance: m.Distance,
	}, nil
}

// Enroll encodes a photo and stores a new active employee from its first face.
func (s *Service) Enroll(ctx context.Context, name, department string, photo []byte) (Employee, error) {
	frame, err := facematch.DecodeImage(photo)
	if err != nil {
		return Employee{}, err
	}
	enc, err := s.encoder.Encode(ctx, frame.Data)
	if err != nil {
		return Employee{}, fmt.Errorf("encode photo: %w", err)
	}
	if len(enc.Encodings) == 0 {
		return Employee{}, errors.New("no face detected in photo")
	}
	return s.repo.CreateEmployee(ctx, Employee{Name: name, Department: department, Encoding: enc.Encodings[0]})
}

// Employees lists employees; all includes inactive ones.
func (s *Service) Employees(ctx context.Context, all bool) ([]Employee, error) {
	return s.repo.ListEmployees(ctx, !all)
}

// Deactivate removes an employee from matching and the dashboard.
func (s *Service) Deactivate(ctx context.Context, id int64) (Employee, error) {
	emp, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if err := s.repo.DeactivateEmployee(ctx, id); err != nil {
		return Employee{}, err
	}
	emp.Active = false
	return emp, nil
}
