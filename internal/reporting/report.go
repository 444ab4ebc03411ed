// Package reporting summarizes the records of an execution run.
package reporting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/klarna-connector/internal/money"
)

// Record outcomes.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Entry is the outcome of one record.
type Entry struct {
	Timestamp    time.Time
	RunID        string
	Item         int
	Resource     string
	Operation    string
	Status       string // StatusSuccess or StatusFailure
	AmountMinor  int64  // set for successful operations that move money
	Currency     string
	ErrorKind    string // apperror kind, failures only
	ErrorMessage string
}

// RunReport summarizes the entries of a run.
type RunReport struct {
	TotalRecords     int                        `json:"totalRecords"`
	Succeeded        int                        `json:"succeeded"`
	Failed           int                        `json:"failed"`
	ByOperation      map[string]int             `json:"byOperation"`    // resource.operation -> records
	ErrorBreakdown   map[string]int             `json:"errorBreakdown"` // error kind -> failures
	AmountByCurrency map[string]decimal.Decimal `json:"amountByCurrency"`
	DateFrom         time.Time                  `json:"dateFrom"`
	DateTo           time.Time                  `json:"dateTo"`
	Duration         time.Duration              `json:"durationNs"`
}

// Summarize builds a RunReport. Amounts of successful records are totalled
// per currency in minor units and converted to display amounts.
func Summarize(entries []Entry) *RunReport {
	report := &RunReport{
		ByOperation:      make(map[string]int),
		ErrorBreakdown:   make(map[string]int),
		AmountByCurrency: make(map[string]decimal.Decimal),
	}
	minorByCurrency := make(map[string]int64)

	for i, e := range entries {
		report.TotalRecords++
		if i == 0 || e.Timestamp.Before(report.DateFrom) {
			report.DateFrom = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(report.DateTo) {
			report.DateTo = e.Timestamp
		}
		report.ByOperation[e.Resource+"."+e.Operation]++

		switch e.Status {
		case StatusSuccess:
			report.Succeeded++
			if e.Currency != "" && e.AmountMinor != 0 {
				minorByCurrency[strings.ToUpper(e.Currency)] += e.AmountMinor
			}
		case StatusFailure:
			report.Failed++
			if e.ErrorKind != "" {
				report.ErrorBreakdown[e.ErrorKind]++
			}
		}
	}

	for currency, minor := range minorByCurrency {
		report.AmountByCurrency[currency] = money.FromMinorUnits(minor, currency)
	}
	report.Duration = report.DateTo.Sub(report.DateFrom)
	return report
}
