package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	invmodels "fakturo/internal/invoicing/models"
	"fakturo/internal/invoicing/service"
	"fakturo/pkg/platform/lock"
	"fakturo/pkg/platform/sentinel"
)

// stubGenerator answers per payment id from an error queue; the last queued
// entry sticks, and a nil entry means success from that call on.
type stubGenerator struct {
	errs  map[int64][]error
	calls map[int64]int
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{
		errs:  map[int64][]error{},
		calls: map[int64]int{},
	}
}

func (s *stubGenerator) failWith(paymentID int64, errs ...error) {
	s.errs[paymentID] = append(s.errs[paymentID], errs...)
}

func (s *stubGenerator) Generate(_ context.Context, paymentID int64) (*invmodels.Invoice, error) {
	s.calls[paymentID]++
	queue := s.errs[paymentID]
	var err error
	if len(queue) > 0 {
		err = queue[0]
		if len(queue) > 1 {
			s.errs[paymentID] = queue[1:]
		}
	}
	if err != nil {
		return nil, err
	}
	return &invmodels.Invoice{ID: fmt.Sprintf("inv-%d", paymentID), Number: "26m0800001"}, nil
}

func newWorker(gen Generator, opts ...TriggerWorkerOption) *TriggerWorker {
	return NewTriggerWorker(nil, gen, slog.New(slog.DiscardHandler), opts...)
}

func rawRecord(offset int64, value string) *kgo.Record {
	return &kgo.Record{Topic: "invoicing.generate", Offset: offset, Value: []byte(value)}
}

func triggerRecord(offset, paymentID int64) *kgo.Record {
	return rawRecord(offset, fmt.Sprintf(`{"payment_id": %d}`, paymentID))
}

func fetchesOf(partitions ...kgo.FetchPartition) kgo.Fetches {
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic:      "invoicing.generate",
			Partitions: partitions,
		}},
	}}
}

func TestHandleCommitDecisions(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		err        error
		wantCommit bool
		wantCalls  int
	}{
		{
			name:       "successful generation commits",
			value:      `{"payment_id": 1}`,
			wantCommit: true,
			wantCalls:  1,
		},
		{
			name:       "malformed payload commits without calling the generator",
			value:      `{not json`,
			wantCommit: true,
			wantCalls:  0,
		},
		{
			name:       "missing payment id commits without calling the generator",
			value:      `{"payment_id": 0}`,
			wantCommit: true,
			wantCalls:  0,
		},
		{
			name:       "not invoiceable is an expected rejection, commits",
			value:      `{"payment_id": 1}`,
			err:        service.ErrPaymentNotInvoiceable,
			wantCommit: true,
			wantCalls:  1,
		},
		{
			name:       "missing address is an expected rejection, commits",
			value:      `{"payment_id": 1}`,
			err:        service.ErrMissingBuyerAddress,
			wantCommit: true,
			wantCalls:  1,
		},
		{
			name:       "unknown payment commits",
			value:      `{"payment_id": 1}`,
			err:        sentinel.ErrNotFound,
			wantCommit: true,
			wantCalls:  1,
		},
		{
			name:       "persistent lock contention keeps the offset uncommitted",
			value:      `{"payment_id": 1}`,
			err:        lock.ErrAcquireTimeout,
			wantCommit: false,
			wantCalls:  1,
		},
		{
			name:       "persistent infrastructure failure keeps the offset uncommitted",
			value:      `{"payment_id": 1}`,
			err:        errors.New("pq: connection refused"),
			wantCommit: false,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newStubGenerator()
			if tt.err != nil {
				gen.failWith(1, tt.err)
			}
			w := newWorker(gen, WithRetryWait(time.Nanosecond))

			err := w.handle(context.Background(), rawRecord(10, tt.value))
			if tt.wantCommit {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.Equal(t, tt.wantCalls, gen.calls[1])
		})
	}
}

func TestHandleRetriesTransientFailureInPlace(t *testing.T) {
	gen := newStubGenerator()
	gen.failWith(1, lock.ErrAcquireTimeout, nil)
	w := newWorker(gen, WithRetryWait(5*time.Second))

	err := w.handle(context.Background(), triggerRecord(10, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls[1], "the second attempt should have succeeded")
}

// TestProcessStopsPartitionAtFailure pins the at-least-once guarantee for
// mixed batches: a success behind a failed record on the same partition
// must not be committed, because committing it would advance the group
// offset past the failure and the failed trigger would never come back.
func TestProcessStopsPartitionAtFailure(t *testing.T) {
	gen := newStubGenerator()
	gen.failWith(2, errors.New("pq: connection refused"))
	w := newWorker(gen, WithRetryWait(time.Nanosecond))

	fetches := fetchesOf(kgo.FetchPartition{
		Partition: 0,
		Records: []*kgo.Record{
			triggerRecord(10, 1),
			triggerRecord(11, 2),
			triggerRecord(12, 3),
		},
	})

	commit, err := w.process(context.Background(), fetches)
	require.Error(t, err)

	require.Len(t, commit, 1, "only the prefix before the failure may commit")
	assert.Equal(t, int64(10), commit[0].Offset)
	assert.Equal(t, 0, gen.calls[3], "records behind the failure must stay untouched")
}

func TestProcessFailureAtHeadCommitsNothing(t *testing.T) {
	gen := newStubGenerator()
	gen.failWith(1, errors.New("pq: connection refused"))
	w := newWorker(gen, WithRetryWait(time.Nanosecond))

	fetches := fetchesOf(kgo.FetchPartition{
		Partition: 0,
		Records: []*kgo.Record{
			triggerRecord(10, 1),
			triggerRecord(11, 2),
		},
	})

	commit, err := w.process(context.Background(), fetches)
	require.Error(t, err)
	assert.Empty(t, commit)
	assert.Equal(t, 0, gen.calls[2])
}

func TestProcessCommitsWholeCleanBatch(t *testing.T) {
	gen := newStubGenerator()
	gen.failWith(2, service.ErrPaymentNotInvoiceable)
	w := newWorker(gen)

	fetches := fetchesOf(
		kgo.FetchPartition{
			Partition: 0,
			Records: []*kgo.Record{
				triggerRecord(10, 1),
				triggerRecord(11, 2),
			},
		},
		kgo.FetchPartition{
			Partition: 1,
			Records: []*kgo.Record{
				triggerRecord(7, 3),
			},
		},
	)

	commit, err := w.process(context.Background(), fetches)
	require.NoError(t, err)
	assert.Len(t, commit, 3, "successes and expected rejections all commit")
}
