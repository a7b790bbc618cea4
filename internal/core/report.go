package core

// ReportRow is one row of an ImportReport, in source file order.
type ReportRow struct {
	Row     ImportRow         `json:"row"`
	Outcome ValidationOutcome `json:"outcome"`
	Status  RowStatus         `json:"status"`
}

// ImportReport aggregates the outcomes of a validation pass.
// ValidCount + WarnedCount + RejectedCount always equals TotalRows.
type ImportReport struct {
	TotalRows     int         `json:"totalRows"`
	ValidCount    int         `json:"validCount"`
	WarnedCount   int         `json:"warnedCount"`
	RejectedCount int         `json:"rejectedCount"`
	Rows          []ReportRow `json:"rows"`
}

// Committable reports whether the report has rows and none are rejected.
func (r ImportReport) Committable() bool {
	return r.TotalRows > 0 && r.RejectedCount == 0
}

// Aggregate folds validated rows into a report. It does no I/O and does not
// modify results, so running it twice yields identical reports.
func Aggregate(results []RowResult) ImportReport {
	report := ImportReport{
		TotalRows: len(results),
		Rows:      make([]ReportRow, len(results)),
	}

	for i, res := range results {
		status := res.Outcome.Status()
		switch status {
		case StatusValid:
			report.ValidCount++
		case StatusWarned:
			report.WarnedCount++
		case StatusRejected:
			report.RejectedCount++
		}
		report.Rows[i] = ReportRow{Row: res.Row, Outcome: res.Outcome, Status: status}
	}

	return report
}

// Staged returns the staged items of a clean pass, in row order.
// It returns nil if any row was rejected.
func Staged(results []RowResult) []StagedItem {
	items := make([]StagedItem, 0, len(results))
	for _, res := range results {
		if res.Staged == nil {
			return nil
		}
		items = append(items, *res.Staged)
	}
	return items
}
