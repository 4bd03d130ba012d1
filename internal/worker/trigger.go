// Package worker runs the queue side of invoice generation: a consumer
// group reading generation triggers and handing each payment to the
// coordinator. Delivery is at-least-once; the coordinator's idempotency
// absorbs replays and concurrent duplicates.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	invmodels "fakturo/internal/invoicing/models"
	"fakturo/internal/invoicing/service"
	"fakturo/pkg/platform/lock"
	"fakturo/pkg/platform/sentinel"
)

// Generator is the coordinator capability the worker invokes per trigger.
type Generator interface {
	Generate(ctx context.Context, paymentID int64) (*invmodels.Invoice, error)
}

// Trigger is the payload on the generation topic.
type Trigger struct {
	PaymentID int64 `json:"payment_id"`
}

// TriggerWorker consumes generation triggers.
type TriggerWorker struct {
	client    *kgo.Client
	generator Generator
	log       *slog.Logger
	retryWait time.Duration
}

// TriggerWorkerOption configures a TriggerWorker.
type TriggerWorkerOption func(*TriggerWorker)

// WithRetryWait bounds how long a transiently failing trigger is retried in
// place before the worker gives up and stalls.
func WithRetryWait(wait time.Duration) TriggerWorkerOption {
	return func(w *TriggerWorker) {
		if wait > 0 {
			w.retryWait = wait
		}
	}
}

// NewTriggerWorker creates a worker over an already-configured consumer
// group client subscribed to the trigger topic.
func NewTriggerWorker(client *kgo.Client, generator Generator, log *slog.Logger, opts ...TriggerWorkerOption) *TriggerWorker {
	w := &TriggerWorker{
		client:    client,
		generator: generator,
		log:       log,
		retryWait: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run polls until the context is canceled. Transient failures are retried
// in place; a trigger that keeps failing stalls the worker and Run returns,
// so the process restarts and the group resumes from the committed offsets,
// redelivering the failed trigger.
func (w *TriggerWorker) Run(ctx context.Context) error {
	for {
		fetches := w.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			w.log.ErrorContext(ctx, "fetch error",
				"topic", topic, "partition", partition, "error", err)
		})

		commit, err := w.process(ctx, fetches)
		if len(commit) > 0 {
			if cerr := w.client.CommitRecords(ctx, commit...); cerr != nil {
				w.log.ErrorContext(ctx, "commit failed", "error", cerr)
			}
		}
		if err != nil {
			return fmt.Errorf("trigger processing stalled: %w", err)
		}
	}
}

// process handles the fetched records partition by partition, in offset
// order, and returns the records whose offsets may commit. Offsets commit
// only for an unbroken prefix of handled records per partition: committing
// any record past a failed one would advance the group offset beyond the
// failure and the trigger would never be redelivered.
func (w *TriggerWorker) process(ctx context.Context, fetches kgo.Fetches) ([]*kgo.Record, error) {
	var commit []*kgo.Record
	var stalled error
	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		if stalled != nil {
			return
		}
		for _, record := range p.Records {
			if err := w.handle(ctx, record); err != nil {
				stalled = err
				return
			}
			commit = append(commit, record)
		}
	})
	return commit, stalled
}

// handle processes one trigger. A nil return means the offset may commit:
// generation succeeded, the payload is beyond repair, or redelivery could
// not change the outcome. A non-nil return means the trigger is still
// failing after the bounded retries and its offset must stay uncommitted.
func (w *TriggerWorker) handle(ctx context.Context, record *kgo.Record) error {
	var trigger Trigger
	if err := json.Unmarshal(record.Value, &trigger); err != nil {
		// Malformed triggers never become valid; drop them.
		w.log.WarnContext(ctx, "malformed generation trigger, skipping",
			"topic", record.Topic,
			"offset", record.Offset,
			"error", err,
		)
		return nil
	}
	if trigger.PaymentID <= 0 {
		w.log.WarnContext(ctx, "generation trigger without payment id, skipping",
			"offset", record.Offset,
		)
		return nil
	}

	attempt := func() error {
		inv, err := w.generator.Generate(ctx, trigger.PaymentID)
		switch {
		case err == nil:
			w.log.InfoContext(ctx, "trigger processed",
				"payment_id", trigger.PaymentID,
				"invoice_id", inv.ID,
			)
			return nil
		case errors.Is(err, service.ErrPaymentNotInvoiceable),
			errors.Is(err, service.ErrMissingBuyerAddress),
			errors.Is(err, sentinel.ErrNotFound):
			// Expected rejections. Redelivery would reject again, so commit.
			w.log.InfoContext(ctx, "trigger rejected",
				"payment_id", trigger.PaymentID,
				"reason", err.Error(),
			)
			return nil
		default:
			// Lock contention or an infrastructure failure; worth retrying
			// in place before stalling the partition.
			return err
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = w.retryWait

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, lock.ErrAcquireTimeout) {
			w.log.WarnContext(ctx, "payment still locked, leaving offset uncommitted",
				"payment_id", trigger.PaymentID,
				"offset", record.Offset,
			)
		} else {
			w.log.ErrorContext(ctx, "trigger still failing, leaving offset uncommitted",
				"payment_id", trigger.PaymentID,
				"offset", record.Offset,
				"error", err.Error(),
			)
		}
		return err
	}
	return nil
}
