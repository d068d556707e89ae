package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"faceattend/internal/facematch"
	"faceattend/internal/store"
)

// ErrEmployeeNotFound is returned when no employee has the requested id.
var ErrEmployeeNotFound = errors.New("employee not found")

// Repository persists employees and attendance events.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// CreateEmployee stores a new employee and returns it with its id.
func (r *Repository) CreateEmployee(ctx context.Context, emp Employee) (Employee, error) {
	if emp.Name == "" {
		return Employee{}, errors.New("employee name required")
	}
	blob, err := emp.Encoding.MarshalBinary()
	if err != nil {
		return Employee{}, fmt.Errorf("encode template: %w", err)
	}
	emp.Active = true
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO employees (name, department, encoding, encoding_version, is_active)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), emp.Name, emp.Department, blob, int(facematch.EncodingVersion), true)
	if err := row.Scan(&emp.ID); err != nil {
		return Employee{}, err
	}
	return emp, nil
}

// ListEmployees returns employees in id order, optionally only active ones.
func (r *Repository) ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	query := `SELECT id, name, department, encoding, is_active FROM employees`
	args := []any{}
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// GetEmployee returns a single employee by id.
func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, name, department, encoding, is_active
		FROM employees WHERE id = ?
	`), id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, err
}

// DeactivateEmployee clears the active flag; the row and its events stay.
func (r *Repository) DeactivateEmployee(ctx context.Context, id int64) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`UPDATE employees SET is_active = ? WHERE id = ?`), false, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (Employee, error) {
	var (
		e    Employee
		blob []byte
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Department, &blob, &e.Active); err != nil {
		return Employee{}, err
	}
	if err := e.Encoding.UnmarshalBinary(blob); err != nil {
		return Employee{}, fmt.Errorf("employee %d template: %w", e.ID, err)
	}
	return e, nil
}

// InsertEvent writes a new event. Times are stored in UTC.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.When.IsZero() {
		evt.When = time.Now()
	}
	if evt.Status == "" {
		evt.Status = StatusPresent
	}
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (employee_id, occurred_at, status)
		VALUES (?, ?, ?)
		RETURNING id
	`), evt.EmployeeID, evt.When.UTC(), evt.Status)
	if err := row.Scan(&evt.ID); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// RecentEvent returns the latest event for the employee at or after since.
func (r *Repository) RecentEvent(ctx context.Context, employeeID int64, since time.Time) (*Event, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, employee_id, occurred_at, status
		FROM attendance
		WHERE employee_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`), employeeID, since.UTC())
	var evt Event
	if err := row.Scan(&evt.ID, &evt.EmployeeID, &evt.When, &evt.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// EventsBetween returns the employee's events in [from, to), oldest first.
func (r *Repository) EventsBetween(ctx context.Context, employeeID int64, from, to time.Time) ([]Event, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT id, employee_id, occurred_at, status
		FROM attendance
		WHERE employee_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, id
	`), employeeID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.EmployeeID, &evt.When, &evt.Status); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// Ledger returns every event joined with its employee, in insertion order.
func (r *Repository) Ledger(ctx context.Context) ([]LedgerRow, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT a.id, a.employee_id, e.name, e.department, a.occurred_at
		FROM attendance a
		JOIN employees e ON e.id = a.employee_id
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []LedgerRow
	for rows.Next() {
		var lr LedgerRow
		if err := rows.Scan(&lr.EventID, &lr.EmployeeID, &lr.Name, &lr.Department, &lr.When); err != nil {
			return nil, err
		}
		res = append(res, lr)
	}
	return res, rows.Err()
}

// CountEvents returns the ledger size.
func (r *Repository) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := r.db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&n)
	return n, err
}
