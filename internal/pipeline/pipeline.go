// Package pipeline drives one fulfillment-notification batch: list recent
// orders, filter to shipped personal ones not yet notified, then per order
// publish the invoice, estimate delivery, send the message and record the
// order. Each order is processed independently; one order failing never
// stops the rest of the batch. The one exception is a ledger write failure,
// which halts the run before any further customer is notified.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/ship_notify/internal/baselinker"
	"github.com/austindbirch/ship_notify/internal/estimate"
	"github.com/austindbirch/ship_notify/internal/ledger"
	"github.com/austindbirch/ship_notify/internal/logging"
	"github.com/austindbirch/ship_notify/internal/metrics"
	"github.com/austindbirch/ship_notify/internal/notify"
	"github.com/austindbirch/ship_notify/internal/publish"
	"github.com/austindbirch/ship_notify/internal/tracing"
)

// Gateway is the slice of the order-source API the pipeline consumes.
// *baselinker.Client satisfies it; tests plug in fakes.
type Gateway interface {
	ListOrders(ctx context.Context, since int64) ([]baselinker.Order, error)
	InvoiceID(ctx context.Context, orderID int64) (int64, bool, error)
	InvoiceFile(ctx context.Context, invoiceID int64) ([]byte, error)
	Packages(ctx context.Context, orderID int64) ([]string, error)
}

// Outcome is the terminal state of one order within a run.
type Outcome string

const (
	OutcomeSkippedSource    Outcome = "skipped_source"    // not a personal order
	OutcomeSkippedStatus    Outcome = "skipped_status"    // not shipped yet
	OutcomeSkippedProcessed Outcome = "skipped_processed" // already in the ledger
	OutcomeNoInvoice        Outcome = "no_invoice"        // retried on a later run
	OutcomeProcessed        Outcome = "processed"
	OutcomeNotifyFailed     Outcome = "notify_failed" // recorded, but the send failed
	OutcomeFailed           Outcome = "failed"
	OutcomeAborted          Outcome = "aborted" // run stopped before this order was handled
)

// Result is the per-order outcome reported back to the CLI.
type Result struct {
	OrderID int64
	Outcome Outcome
	Err     error

	// fatal marks ledger write failures, which abort the whole run:
	// without a working ledger further processing risks double-notifying.
	fatal bool
}

// Summary aggregates one run.
type Summary struct {
	Fetched  int
	Results  []Result
	Duration time.Duration
}

// Count returns how many orders ended in the given outcome.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Pipeline wires the collaborators for a run. Construct with New.
type Pipeline struct {
	gw              Gateway
	ledger          ledger.Ledger
	publisher       publish.Publisher
	notifier        notify.Notifier
	logger          *logging.Logger
	deliveredStatus int
	workers         int
	runID           string
}

// Params collects the pipeline dependencies.
type Params struct {
	Gateway         Gateway
	Ledger          ledger.Ledger
	Publisher       publish.Publisher
	Notifier        notify.Notifier
	Logger          *logging.Logger
	DeliveredStatus int
	Workers         int // 1 = strictly sequential
	RunID           string
}

func New(p Params) *Pipeline {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.Logger == nil {
		p.Logger = logging.New("shipnotify-pipeline")
	}
	return &Pipeline{
		gw:              p.Gateway,
		ledger:          p.Ledger,
		publisher:       p.Publisher,
		notifier:        p.Notifier,
		logger:          p.Logger,
		deliveredStatus: p.DeliveredStatus,
		workers:         p.Workers,
		runID:           p.RunID,
	}
}

// Run executes one batch over orders created since the given unix
// timestamp. It returns an error only for failures that invalidate the
// whole run: listing orders, or reading/writing the ledger.
func (p *Pipeline) Run(ctx context.Context, since int64) (Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run",
		attribute.String("run_id", p.runID),
		attribute.Int64("since", since),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	orders, err := p.gw.ListOrders(ctx, since)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordFailure("list")
		return Summary{}, fmt.Errorf("list orders: %w", err)
	}
	metrics.OrdersFetchedTotal.Add(float64(len(orders)))
	span.SetAttributes(attribute.Int("orders.fetched", len(orders)))

	summary := Summary{Fetched: len(orders)}

	// Eligibility runs up front on one goroutine: a ledger read error here
	// means the processed set is unknown, and the only safe move is to stop.
	var eligible []baselinker.Order
	for _, o := range orders {
		id := strconv.FormatInt(o.OrderID, 10)
		switch {
		case o.Source != baselinker.SourcePersonal:
			metrics.RecordSkip("wrong_source")
			summary.Results = append(summary.Results, Result{OrderID: o.OrderID, Outcome: OutcomeSkippedSource})
		case o.StatusID != p.deliveredStatus:
			metrics.RecordSkip("wrong_status")
			p.logger.WithContext(ctx).WithRun(p.runID).WithOrder(id).Info("order not shipped yet, skipping")
			summary.Results = append(summary.Results, Result{OrderID: o.OrderID, Outcome: OutcomeSkippedStatus})
		default:
			done, err := p.ledger.Contains(ctx, id)
			if err != nil {
				tracing.SetSpanError(ctx, err)
				return summary, fmt.Errorf("ledger check for order %s: %w", id, err)
			}
			if done {
				metrics.RecordSkip("already_processed")
				p.logger.WithContext(ctx).WithRun(p.runID).WithOrder(id).Info("order already processed, skipping")
				summary.Results = append(summary.Results, Result{OrderID: o.OrderID, Outcome: OutcomeSkippedProcessed})
				continue
			}
			eligible = append(eligible, o)
		}
	}
	span.SetAttributes(attribute.Int("orders.eligible", len(eligible)))

	results := p.processAll(ctx, eligible)
	summary.Results = append(summary.Results, results...)
	summary.Duration = time.Since(start)

	for _, r := range results {
		if r.fatal {
			return summary, fmt.Errorf("ledger write for order %d: %w", r.OrderID, r.Err)
		}
	}
	return summary, nil
}

// processAll fans eligible orders out to the worker pool and collects
// per-order results. Ledger writes are serialized by the ledger itself.
// The first fatal result (a ledger write failure) cancels the run context:
// dispatching stops and no further customer is notified, since an order
// notified without being recorded would be re-notified on the next run.
func (p *Pipeline) processAll(ctx context.Context, orders []baselinker.Order) []Result {
	if len(orders) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan baselinker.Order)
	results := make([]Result, 0, len(orders))

	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := p.workers
	if workers > len(orders) {
		workers = len(orders)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range jobs {
				r := p.processOrder(ctx, o)
				if r.fatal {
					cancel()
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, o := range orders {
		select {
		case jobs <- o:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// processOrder walks one order through invoice lookup, publishing,
// notification and recording. Every error is attributed to the stage it
// happened in and stays inside this order's result.
func (p *Pipeline) processOrder(ctx context.Context, o baselinker.Order) Result {
	if err := ctx.Err(); err != nil {
		return Result{OrderID: o.OrderID, Outcome: OutcomeAborted, Err: err}
	}

	id := strconv.FormatInt(o.OrderID, 10)
	ctx, span := tracing.StartSpan(ctx, "pipeline.order",
		attribute.String("order_id", id),
	)
	defer span.End()

	log := func() *logging.LogEntry {
		return p.logger.WithContext(ctx).WithRun(p.runID).WithOrder(id)
	}

	invoiceID, ok, err := p.gw.InvoiceID(ctx, o.OrderID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordFailure("invoice")
		log().WithError(err).Error("invoice lookup failed")
		return Result{OrderID: o.OrderID, Outcome: OutcomeFailed, Err: err}
	}
	if !ok {
		// Not recorded: the invoice may appear later and the order is
		// picked up again on the next run.
		tracing.AddSpanEvent(ctx, "invoice.missing")
		metrics.RecordSkip("no_invoice")
		log().Info("no invoice yet, will retry on a later run")
		return Result{OrderID: o.OrderID, Outcome: OutcomeNoInvoice}
	}
	invID := strconv.FormatInt(invoiceID, 10)
	span.SetAttributes(attribute.String("invoice_id", invID))

	pdf, err := p.gw.InvoiceFile(ctx, invoiceID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordFailure("invoice")
		log().WithInvoice(invID).WithError(err).Error("invoice fetch failed")
		return Result{OrderID: o.OrderID, Outcome: OutcomeFailed, Err: err}
	}

	tracing.AddSpanEvent(ctx, "invoice.publish")
	invoiceURL, err := p.publisher.Publish(ctx, invoiceID, pdf)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordFailure("publish")
		log().WithInvoice(invID).WithError(err).Error("invoice publish failed")
		return Result{OrderID: o.OrderID, Outcome: OutcomeFailed, Err: err}
	}

	trackingNumbers, err := p.gw.Packages(ctx, o.OrderID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordFailure("packages")
		log().WithError(err).Error("package lookup failed")
		return Result{OrderID: o.OrderID, Outcome: OutcomeFailed, Err: err}
	}

	// Recheck before the send. If another worker just hit a ledger write
	// failure, a message sent now could never be recorded.
	if err := ctx.Err(); err != nil {
		log().Info("run aborted before notification, order left unrecorded")
		return Result{OrderID: o.OrderID, Outcome: OutcomeAborted, Err: err}
	}

	tracing.AddSpanEvent(ctx, "notify.send")
	deliveryDate := estimate.Delivery(o.DateAdd)
	sid, notifyErr := p.notifier.Notify(ctx, notify.Notification{
		Phone:           o.Phone,
		DeliveryDate:    deliveryDate,
		InvoiceURL:      invoiceURL,
		TrackingNumbers: trackingNumbers,
	})
	if notifyErr != nil {
		// The send failure is logged and counted but does not stop the
		// order from being recorded. An unrecorded order would be fully
		// re-processed next run and the customer could get the message
		// twice; a recorded one shows up as notify_failed for a manual
		// resend.
		tracing.SetSpanError(ctx, notifyErr)
		metrics.RecordNotifyFailure(classifyNotifyReason(notifyErr))
		log().WithInvoice(invID).WithError(notifyErr).Error("notification send failed")
	} else {
		log().WithInvoice(invID).WithFields(map[string]any{
			"message_sid":   sid,
			"delivery_date": deliveryDate,
			"awb_count":     len(trackingNumbers),
		}).Info("notification sent")
	}

	if err := p.ledger.Record(ctx, id); err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordFailure("record")
		log().WithError(err).Error("ledger record failed")
		return Result{OrderID: o.OrderID, Outcome: OutcomeFailed, Err: err, fatal: true}
	}
	tracing.AddSpanEvent(ctx, "ledger.recorded")

	if notifyErr != nil {
		return Result{OrderID: o.OrderID, Outcome: OutcomeNotifyFailed, Err: notifyErr}
	}
	metrics.OrdersProcessedTotal.Inc()
	return Result{OrderID: o.OrderID, Outcome: OutcomeProcessed}
}

// classifyNotifyReason buckets send errors for metrics.
func classifyNotifyReason(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "authenticate") || strings.Contains(msg, "401"):
		return "auth"
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "400"):
		return "invalid_request"
	default:
		return "other"
	}
}
