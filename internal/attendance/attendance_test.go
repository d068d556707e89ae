package attendance

import (
	"bytes"
	"context"
	"encoding/csv"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceattend/internal/faceclient"
	"faceattend/internal/facematch"
	"faceattend/internal/store"
)

type fakeEncoder struct {
	encodings []facematch.Encoding
	err       error
	calls     int
}

func (f *fakeEncoder) Encode(_ context.Context, _ []byte) (*faceclient.EncodeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &faceclient.EncodeResult{Encodings: f.encodings, FacesDetected: len(f.encodings)}, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func template(v float64) facematch.Encoding {
	e := make(facematch.Encoding, facematch.EncodingLen)
	for i := range e {
		e[i] = v
	}
	return e
}

// near returns a template at distance d from base.
func near(base facematch.Encoding, d float64) facematch.Encoding {
	out := append(facematch.Encoding(nil), base...)
	out[0] += d
	return out
}

type fixture struct {
	svc   *Service
	repo  *Repository
	enc   *fakeEncoder
	clock *fakeClock
	loc   *time.Location
}

func newFixture(t *testing.T, policy facematch.Policy, dedup time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewDB(ctx, filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	f := &fixture{
		repo:  NewRepository(db),
		enc:   &fakeEncoder{},
		clock: &fakeClock{t: time.Date(2024, 3, 10, 9, 15, 0, 0, loc)},
		loc:   loc,
	}
	f.svc = NewService(f.repo, f.enc, facematch.NewMatcher(facematch.DefaultTolerance, policy), Options{
		Location:    loc,
		DedupWindow: dedup,
		Now:         f.clock.Now,
	})
	return f
}

func (f *fixture) employee(t *testing.T, name, dept string, enc facematch.Encoding) Employee {
	t.Helper()
	emp, err := f.repo.CreateEmployee(context.Background(), Employee{Name: name, Department: dept, Encoding: enc})
	require.NoError(t, err)
	return emp
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.repo.CountEvents(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) scan(t *testing.T) ScanResult {
	t.Helper()
	res, err := f.svc.ProcessScan(context.Background(), facematch.Frame{Data: []byte("frame")})
	require.NoError(t, err)
	return res
}

func TestBuildSummary(t *testing.T) {
	loc := time.UTC
	emp := Employee{ID: 7, Name: "Ayesha", Department: "Ops"}
	at := func(h, m, s int) Event {
		return Event{When: time.Date(2024, 3, 10, h, m, s, 0, loc)}
	}

	row := BuildSummary(emp, nil, loc)
	assert.Equal(t, SummaryRow{EmployeeID: 7, Name: "Ayesha", Department: "Ops",
		InTime: AbsentMarker, OutTime: AbsentMarker, Status: StatusAbsent}, row)

	row = BuildSummary(emp, []Event{at(9, 1, 2)}, loc)
	assert.Equal(t, "09:01:02", row.InTime)
	assert.Equal(t, AbsentMarker, row.OutTime)
	assert.Equal(t, StatusPresent, row.Status)

	row = BuildSummary(emp, []Event{at(9, 0, 0), at(12, 30, 0), at(17, 45, 10)}, loc)
	assert.Equal(t, "09:00:00", row.InTime)
	assert.Equal(t, "17:45:10", row.OutTime)
	assert.Equal(t, StatusPresent, row.Status)
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	// 20:30 UTC on the 9th is already the 10th in Karachi (UTC+5).
	from, to := DayBounds(time.Date(2024, 3, 9, 20, 30, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), to)
}

func TestProcessScanNoFace(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	f.employee(t, "Ali", "Eng", template(0))

	res := f.scan(t)
	assert.Equal(t, OutcomeNoFace, res.Outcome)
	assert.Equal(t, "No face detected!", res.Message)
	assert.False(t, res.Success())
	assert.Zero(t, f.count(t))
}

func TestProcessScanMarksMatch(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	f.employee(t, "Ali", "Eng", template(0.9))
	ayesha := f.employee(t, "Ayesha", "Ops", template(0))
	f.enc.encodings = []facematch.Encoding{near(template(0), 0.2), template(0.9)}

	res := f.scan(t)
	require.Equal(t, OutcomeMarked, res.Outcome)
	assert.True(t, res.Success())
	assert.Equal(t, "Marked: Ayesha at 09:15", res.Message)
	assert.Equal(t, ayesha.ID, res.Employee.ID)
	assert.InDelta(t, 0.2, res.Distance, 1e-9)
	assert.Equal(t, 1, f.count(t))

	// No duplicate suppression by default.
	f.scan(t)
	assert.Equal(t, 2, f.count(t))
}

func TestProcessScanNotRecognized(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	f.employee(t, "Ali", "Eng", template(0))
	f.enc.encodings = []facematch.Encoding{near(template(0), 0.8)}

	res := f.scan(t)
	assert.Equal(t, OutcomeNotRecognized, res.Outcome)
	assert.Equal(t, "Employee not found.", res.Message)
	assert.Zero(t, f.count(t))
}

func TestProcessScanIgnoresInactive(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	ali := f.employee(t, "Ali", "Eng", template(0))
	_, err := f.svc.Deactivate(context.Background(), ali.ID)
	require.NoError(t, err)
	f.enc.encodings = []facematch.Encoding{template(0)}

	res := f.scan(t)
	assert.Equal(t, OutcomeNotRecognized, res.Outcome)
	assert.Zero(t, f.count(t))
}

func TestProcessScanPolicies(t *testing.T) {
	probe := template(0)

	first := newFixture(t, facematch.PolicyFirst, 0)
	first.employee(t, "Far", "A", near(probe, 0.45))
	first.employee(t, "Close", "B", near(probe, 0.05))
	first.enc.encodings = []facematch.Encoding{probe}
	assert.Equal(t, "Far", first.scan(t).Employee.Name)

	closest := newFixture(t, facematch.PolicyClosest, 0)
	closest.employee(t, "Far", "A", near(probe, 0.45))
	closest.employee(t, "Close", "B", near(probe, 0.05))
	closest.enc.encodings = []facematch.Encoding{probe}
	assert.Equal(t, "Close", closest.scan(t).Employee.Name)
}

func TestProcessScanDedupWindow(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 5*time.Minute)
	f.employee(t, "Ali", "Eng", template(0))
	f.enc.encodings = []facematch.Encoding{template(0)}

	assert.Equal(t, OutcomeMarked, f.scan(t).Outcome)

	f.clock.t = f.clock.t.Add(2 * time.Minute)
	res := f.scan(t)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.True(t, res.Success())
	assert.Equal(t, "Already marked: Ali at 09:15", res.Message)
	assert.Equal(t, 1, f.count(t))

	f.clock.t = f.clock.t.Add(10 * time.Minute)
	assert.Equal(t, OutcomeMarked, f.scan(t).Outcome)
	assert.Equal(t, 2, f.count(t))
}

func TestProcessScanEncoderError(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	f.enc.err = assert.AnError

	_, err := f.svc.ProcessScan(context.Background(), facematch.Frame{Data: []byte("frame")})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDailySummary(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	ctx := context.Background()
	ali := f.employee(t, "Ali", "Eng", template(0))
	ayesha := f.employee(t, "Ayesha", "Ops", template(0.3))
	f.employee(t, "Bilal", "HR", template(0.6))
	gone := f.employee(t, "Gone", "HR", template(0.9))

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, f.loc)
	insert := func(id int64, when time.Time) {
		_, err := f.repo.InsertEvent(ctx, Event{EmployeeID: id, When: when})
		require.NoError(t, err)
	}
	// Ali: three scans today plus one yesterday late evening.
	insert(ali.ID, day.Add(-time.Hour))
	insert(ali.ID, day.Add(17*time.Hour+45*time.Minute))
	insert(ali.ID, day.Add(9*time.Hour))
	insert(ali.ID, day.Add(12*time.Hour+30*time.Minute))
	// Ayesha: one scan today.
	insert(ayesha.ID, day.Add(8*time.Hour+5*time.Minute+6*time.Second))
	insert(gone.ID, day.Add(10*time.Hour))
	_, err := f.svc.Deactivate(ctx, gone.ID)
	require.NoError(t, err)

	rows, err := f.svc.DailySummary(ctx, day.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, SummaryRow{EmployeeID: ali.ID, Name: "Ali", Department: "Eng",
		InTime: "09:00:00", OutTime: "17:45:00", Status: StatusPresent}, rows[0])
	assert.Equal(t, "08:05:06", rows[1].InTime)
	assert.Equal(t, AbsentMarker, rows[1].OutTime)
	assert.Equal(t, StatusPresent, rows[1].Status)
	assert.Equal(t, "Bilal", rows[2].Name)
	assert.Equal(t, StatusAbsent, rows[2].Status)
	assert.Equal(t, AbsentMarker, rows[2].InTime)

	today, err := f.svc.TodaySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, today)
}

func TestWriteReport(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	ctx := context.Background()
	ali := f.employee(t, "Ali", "Eng", template(0))
	ayesha := f.employee(t, "Ayesha, Jr.", "Ops", template(0.3))

	base := time.Date(2024, 3, 10, 9, 0, 0, 0, f.loc)
	for i, id := range []int64{ali.ID, ayesha.ID, ali.ID} {
		_, err := f.repo.InsertEvent(ctx, Event{EmployeeID: id, When: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	_, err := f.svc.Deactivate(ctx, ali.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.svc.WriteReport(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"ID", "Name", "Timestamp", "Department"}, records[0])
	assert.Equal(t, []string{"1", "Ali", "2024-03-10 09:00:00", "Eng"}, records[1])
	assert.Equal(t, []string{"2", "Ayesha, Jr.", "2024-03-10 10:00:00", "Ops"}, records[2])
	assert.Equal(t, []string{"1", "Ali", "2024-03-10 11:00:00", "Eng"}, records[3])
}

func TestWriteReportEmptyLedger(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)

	var buf bytes.Buffer
	n, err := f.svc.WriteReport(context.Background(), &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "ID,Name,Timestamp,Department\n", buf.String())
}

func TestDeactivateUnknown(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	_, err := f.svc.Deactivate(context.Background(), 99)
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestEnroll(t *testing.T) {
	f := newFixture(t, facematch.PolicyFirst, 0)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))

	f.enc.encodings = nil
	_, err := f.svc.Enroll(ctx, "Ali", "Eng", buf.Bytes())
	assert.Error(t, err)

	f.enc.encodings = []facematch.Encoding{template(0.25)}
	emp, err := f.svc.Enroll(ctx, "Ali", "Eng", buf.Bytes())
	require.NoError(t, err)
	assert.True(t, emp.Active)

	stored, err := f.repo.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, template(0.25), stored.Encoding)

	_, err = f.svc.Enroll(ctx, "Bad", "Eng", []byte("not an image"))
	assert.ErrorIs(t, err, facematch.ErrInvalidFrame)

	all, err := f.svc.Employees(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
