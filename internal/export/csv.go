package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/reports"
)

var csvHeader = []string{
	"Migration ID", "Customer ID", "Customer", "Stage", "Owner", "Priority",
	"Start Date", "Days In Stage", "Threshold Days", "Status", "Next Stage",
}

func exportCSV(statuses []reports.MigrationStatus, filename string) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, st := range statuses {
		m := st.Migration
		stage := string(m.Stage)
		if stage == "" {
			stage = m.RawStage
		}
		start := ""
		if m.StartDate != nil {
			start = hub.FormatDate(*m.StartDate)
		}
		days := ""
		if st.Evaluation.DaysInStage >= 0 {
			days = strconv.Itoa(st.Evaluation.DaysInStage)
		}
		threshold := ""
		if st.Evaluation.ThresholdDays > 0 {
			threshold = strconv.Itoa(st.Evaluation.ThresholdDays)
		}
		if err := w.Write([]string{
			m.ID, m.CustomerID, m.CustomerName, stage, m.OwnerEmail, m.Priority,
			start, days, threshold, string(st.Evaluation.Status), string(st.Evaluation.NextStage),
		}); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", m.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: filename + ".csv",
		MimeType: "text/csv",
	}, nil
}
