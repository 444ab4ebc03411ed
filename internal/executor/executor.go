// Package executor runs a batch of records through the dispatcher. Records
// are processed one after another; a failed record either aborts the batch
// or, with ContinueOnFail, becomes an error record and processing moves on.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourorg/klarna-connector/internal/apperror"
	"github.com/yourorg/klarna-connector/internal/credentials"
	"github.com/yourorg/klarna-connector/internal/dispatch"
	"github.com/yourorg/klarna-connector/internal/klarna"
	"github.com/yourorg/klarna-connector/internal/reporting"
	"github.com/yourorg/klarna-connector/internal/transport"
)

var recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "klarna_records_total",
	Help: "Records processed by resource, operation and outcome.",
}, []string{"resource", "operation", "outcome"})

// GetRecordsTotal exposes the record counter for tests.
func GetRecordsTotal() *prometheus.CounterVec { return recordsTotal }

// Batch is one execution request: a single resource/operation applied to
// every item.
type Batch struct {
	Resource       string
	Operation      string
	Credential     string // empty selects klarna.DefaultCredentialName
	ContinueOnFail bool
	Items          []map[string]any
}

// PairedItem points an output record back at its input item.
type PairedItem struct {
	Item int `json:"item"`
}

// OutputItem is one output record.
type OutputItem struct {
	JSON       map[string]any `json:"json"`
	PairedItem PairedItem     `json:"pairedItem"`
}

// Result is the outcome of a batch.
type Result struct {
	RunID  string               `json:"runId"`
	Items  []OutputItem         `json:"items"`
	Report *reporting.RunReport `json:"report"`
}

// RecordError is returned when a record fails and the batch is aborted.
type RecordError struct {
	Item int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Item, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Executor runs batches against the Klarna API.
type Executor struct {
	requester transport.Requester
	store     credentials.Store
	notice    string
	now       func() time.Time
}

// NewExecutor creates an Executor. notice, when non-empty, is logged once
// per process on the first batch.
func NewExecutor(r transport.Requester, store credentials.Store, notice string) *Executor {
	if r == nil {
		panic("transport.Requester cannot be nil")
	}
	if store == nil {
		panic("credentials.Store cannot be nil")
	}
	return &Executor{requester: r, store: store, notice: notice, now: time.Now}
}

// Execute processes the batch. Without ContinueOnFail the first failing
// record stops the batch and its error is returned as a *RecordError.
func (e *Executor) Execute(ctx context.Context, batch Batch) (*Result, error) {
	if e.notice != "" {
		klarna.LogNoticeOnce(e.notice)
	}

	runID := uuid.NewString()
	ctx, span := otel.Tracer("executor").Start(ctx, "Executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("klarna.resource", batch.Resource),
		attribute.String("klarna.operation", batch.Operation),
		attribute.Int("batch.size", len(batch.Items)),
	)

	client := klarna.NewClient(e.requester, e.store, batch.Credential)
	params := dispatch.ItemParameters(batch.Items)

	result := &Result{RunID: runID, Items: []OutputItem{}}
	entries := make([]reporting.Entry, 0, len(batch.Items))

	for i := range batch.Items {
		records, amounted, err := e.runRecord(ctx, client, batch, params, i)
		entry := reporting.Entry{
			Timestamp: e.now(),
			RunID:     runID,
			Item:      i,
			Resource:  batch.Resource,
			Operation: batch.Operation,
		}

		if err != nil {
			entry.Status = reporting.StatusFailure
			entry.ErrorKind = apperror.Kind(err)
			entry.ErrorMessage = err.Error()
			entries = append(entries, entry)
			recordsTotal.WithLabelValues(batch.Resource, batch.Operation, "failure").Inc()
			log.Printf("Executor: run %s item %d (%s.%s) failed: %v", runID, i, batch.Resource, batch.Operation, err)

			if !batch.ContinueOnFail {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, &RecordError{Item: i, Err: err}
			}
			result.Items = append(result.Items, OutputItem{
				JSON:       map[string]any{"error": err.Error()},
				PairedItem: PairedItem{Item: i},
			})
			continue
		}

		entry.Status = reporting.StatusSuccess
		if amounted != nil {
			entry.AmountMinor, entry.Currency = amounted.Amount()
		}
		entries = append(entries, entry)
		recordsTotal.WithLabelValues(batch.Resource, batch.Operation, "success").Inc()

		for _, rec := range records {
			result.Items = append(result.Items, OutputItem{JSON: rec, PairedItem: PairedItem{Item: i}})
		}
	}

	result.Report = reporting.Summarize(entries)
	log.Printf("Executor: run %s finished %s.%s: %d succeeded, %d failed",
		runID, batch.Resource, batch.Operation, result.Report.Succeeded, result.Report.Failed)
	return result, nil
}

// runRecord parses and executes one record. Nothing is sent when parsing
// fails.
func (e *Executor) runRecord(ctx context.Context, client *klarna.Client, batch Batch, params dispatch.ItemParameters, item int) ([]map[string]any, dispatch.Amounted, error) {
	op, err := dispatch.Parse(batch.Resource, batch.Operation, params, item)
	if err != nil {
		return nil, nil, err
	}
	records, err := dispatch.Execute(ctx, client, op)
	if err != nil {
		return nil, nil, err
	}
	amounted, _ := op.(dispatch.Amounted)
	return records, amounted, nil
}
