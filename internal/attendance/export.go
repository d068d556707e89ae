package attendance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ReportFilename is the download name of the ledger export.
const ReportFilename = "attendance_report.csv"

var reportHeader = []string{"ID", "Name", "Timestamp", "Department"}

// WriteReport writes the whole ledger as CSV, header first, one row per
// event including events of inactive employees. It returns the number of
// event rows written.
func (s *Service) WriteReport(ctx context.Context, w io.Writer) (int, error) {
	ledger, err := s.repo.Ledger(ctx)
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return 0, err
	}
	for _, lr := range ledger {
		rec := []string{
			strconv.FormatInt(lr.EmployeeID, 10),
			lr.Name,
			lr.When.In(s.loc).Format("2006-01-02 15:04:05"),
			lr.Department,
		}
		if err := cw.Write(rec); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(ledger), cw.Error()
}
