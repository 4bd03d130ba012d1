//go:build integration

package payment_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"fakturo/internal/invoicing/models"
	"fakturo/internal/invoicing/store/payment"
	"fakturo/pkg/platform/sentinel"
	"fakturo/pkg/testutil/containers"
)

type PostgresPaymentSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *payment.Postgres
}

func TestPostgresPaymentSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPaymentSuite))
}

func (s *PostgresPaymentSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = payment.NewPostgres(s.postgres.DB)
}

func (s *PostgresPaymentSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"invoice_line_items", "invoices", "payment_items", "payments", "invoice_numbers", "addresses", "buyers")
	s.Require().NoError(err)
}

func (s *PostgresPaymentSuite) seedPayment() int64 {
	ctx := context.Background()

	var buyerID int64
	err := s.postgres.DB.QueryRowContext(ctx,
		`INSERT INTO buyers (name) VALUES ('ACME s.r.o.') RETURNING id`).Scan(&buyerID)
	s.Require().NoError(err)

	var paymentID int64
	err = s.postgres.DB.QueryRowContext(ctx, `
		INSERT INTO payments (buyer_id, status, paid_at, currency, amount, country)
		VALUES ($1, 'paid', now(), 'EUR', 12.00, 'SK')
		RETURNING id
	`, buyerID).Scan(&paymentID)
	s.Require().NoError(err)

	_, err = s.postgres.DB.ExecContext(ctx, `
		INSERT INTO payment_items (payment_id, name, count, unit_amount, vat_rate)
		VALUES ($1, 'Premium plan', 1, 12.00, 20)
	`, paymentID)
	s.Require().NoError(err)

	return paymentID
}

func (s *PostgresPaymentSuite) seedNumber() int64 {
	var id int64
	err := s.postgres.DB.QueryRowContext(context.Background(), `
		INSERT INTO invoice_numbers (delivered_at, number)
		VALUES (now(), '26m0800001')
		RETURNING id
	`).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *PostgresPaymentSuite) TestFindByIDLoadsItems() {
	ctx := context.Background()
	id := s.seedPayment()

	p, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusPaid, p.Status)
	s.Equal("SK", p.Country)
	s.NotNil(p.PaidAt)
	s.Require().Len(p.Items, 1)
	s.Equal("Premium plan", p.Items[0].Name)
	s.True(p.Items[0].UnitAmount.Equal(decimal.NewFromFloat(12.00)))

	_, err = s.store.FindByID(ctx, id+1000)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresPaymentSuite) TestAttachNumberIsSetOnce() {
	ctx := context.Background()
	paymentID := s.seedPayment()
	numberID := s.seedNumber()

	s.Require().NoError(s.store.AttachNumber(ctx, paymentID, numberID))

	err := s.store.AttachNumber(ctx, paymentID, numberID)
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.store.AttachNumber(ctx, paymentID+1000, numberID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresPaymentSuite) TestLinkInvoiceIsSetOnce() {
	ctx := context.Background()
	paymentID := s.seedPayment()

	s.Require().NoError(s.store.LinkInvoice(ctx, paymentID, "inv-1"))

	err := s.store.LinkInvoice(ctx, paymentID, "inv-2")
	s.ErrorIs(err, sentinel.ErrConflict)

	p, err := s.store.FindByID(ctx, paymentID)
	s.Require().NoError(err)
	s.Require().NotNil(p.InvoiceID)
	s.Equal("inv-1", *p.InvoiceID, "the first link must win")
}

// TestConcurrentAttachNumber verifies the set-once guard under real
// concurrency: one winner, the rest conflict.
func (s *PostgresPaymentSuite) TestConcurrentAttachNumber() {
	ctx := context.Background()
	paymentID := s.seedPayment()
	numberID := s.seedNumber()

	const goroutines = 20
	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.AttachNumber(ctx, paymentID, numberID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one attach should succeed")
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresPaymentSuite) TestPaidAtRoundTrip() {
	ctx := context.Background()
	id := s.seedPayment()

	p, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.WithinDuration(time.Now(), *p.PaidAt, time.Minute)
}
