package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"fakturo/internal/invoicing/eligibility"
	"fakturo/internal/invoicing/models"
	"fakturo/internal/invoicing/notify"
	"fakturo/internal/invoicing/sequence"
	"fakturo/internal/invoicing/service"
	buyerstore "fakturo/internal/invoicing/store/buyer"
	invoicestore "fakturo/internal/invoicing/store/invoice"
	paymentstore "fakturo/internal/invoicing/store/payment"
	"fakturo/internal/platform/config"
	"fakturo/pkg/platform/lock"
	"fakturo/pkg/platform/sentinel"
)

var testSupplier = config.SupplierConfig{
	Name:      "Fakturo s.r.o.",
	Street:    "Hlavna 1",
	City:      "Bratislava",
	Zip:       "811 01",
	Country:   "SK",
	CompanyID: "36000000",
	TaxID:     "2020000001",
	VatID:     "SK2020000001",
}

type GenerateSuite struct {
	suite.Suite
	payments *paymentstore.InMemory
	buyers   *buyerstore.InMemory
	invoices *invoicestore.InMemory
	numbers  *sequence.InMemoryNumberStore
	events   []models.InvoiceCreated
	eventsMu sync.Mutex
	svc      *service.Service
}

func TestGenerateSuite(t *testing.T) {
	suite.Run(t, new(GenerateSuite))
}

func (s *GenerateSuite) SetupTest() {
	s.payments = paymentstore.NewInMemory()
	s.buyers = buyerstore.NewInMemory()
	s.invoices = invoicestore.NewInMemory()
	s.numbers = sequence.NewInMemoryNumberStore()
	s.events = nil
	s.svc = s.newService(config.InvoicingConfig{
		WindowDays: 15,
		WindowMode: config.WindowFromPaidDate,
		LockTTL:    5 * time.Second,
		LockWait:   time.Second,
	})
}

func (s *GenerateSuite) newService(cfg config.InvoicingConfig) *service.Service {
	hub := notify.NewHub()
	hub.Subscribe(func(_ context.Context, event models.InvoiceCreated) error {
		s.eventsMu.Lock()
		defer s.eventsMu.Unlock()
		s.events = append(s.events, event)
		return nil
	})
	return service.NewService(
		s.payments, s.buyers, s.invoices, s.numbers,
		sequence.NewSequencer(s.numbers, nil),
		eligibility.New(cfg, nil),
		lock.NewInMemory(cfg.LockWait),
		testSupplier, cfg,
		service.WithNotifier(hub),
	)
}

func (s *GenerateSuite) seedBuyer(withAddress bool) *models.Buyer {
	b := &models.Buyer{ID: 7, Name: "Jana Novakova"}
	if withAddress {
		b.InvoiceAddress = &models.Address{
			BuyerID:   7,
			Type:      models.AddressTypeInvoice,
			Name:      "ACME s.r.o.",
			Street:    "Dlha 5",
			City:      "Kosice",
			Zip:       "040 01",
			Country:   "SK",
			CompanyID: "36111111",
			VatID:     "SK2020111111",
		}
	}
	s.Require().NoError(s.buyers.Put(context.Background(), b))
	return b
}

func (s *GenerateSuite) seedPayment(id int64, paidAt time.Time) *models.Payment {
	p := &models.Payment{
		ID:       id,
		BuyerID:  7,
		Status:   models.PaymentStatusPaid,
		PaidAt:   &paidAt,
		Currency: "EUR",
		Amount:   decimal.NewFromFloat(12.00),
		Items: []models.PaymentItem{
			{Name: "Premium plan", Count: 1, UnitAmount: decimal.NewFromFloat(12.00), VatRate: decimal.NewFromInt(20)},
		},
	}
	s.Require().NoError(s.payments.Put(context.Background(), p))
	return p
}

func (s *GenerateSuite) TestGenerateHappyPath() {
	ctx := context.Background()
	s.seedBuyer(true)
	s.seedPayment(1, time.Now().Add(-time.Hour))

	inv, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)

	s.NotEmpty(inv.ID)
	s.NotEmpty(inv.Number)
	s.Equal(1, s.invoices.Count())

	p, err := s.payments.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(p.InvoiceNumberID)
	s.Require().NotNil(p.InvoiceID)
	s.Equal(inv.ID, *p.InvoiceID)

	s.Require().Len(inv.Items, 1)
	s.Equal("Premium plan", inv.Items[0].Text)
	s.True(inv.Items[0].PriceWithoutVat.Equal(decimal.NewFromFloat(10.00)),
		"12.00 at 20%% VAT nets to 10.00, got %s", inv.Items[0].PriceWithoutVat)

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.Require().Len(s.events, 1)
	s.Equal(inv.ID, s.events[0].InvoiceID)
	s.Equal(int64(1), s.events[0].PaymentID)
}

func (s *GenerateSuite) TestGenerateIsIdempotent() {
	ctx := context.Background()
	s.seedBuyer(true)
	s.seedPayment(1, time.Now().Add(-time.Hour))

	first, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)

	second, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(first.Number, second.Number)
	s.Equal(1, s.invoices.Count())

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.Len(s.events, 1, "the event must fire exactly once")
}

func (s *GenerateSuite) TestConcurrentTriggersCreateOneInvoice() {
	ctx := context.Background()
	s.seedBuyer(true)
	s.seedPayment(1, time.Now().Add(-time.Hour))

	const workers = 32
	ids := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := s.svc.Generate(ctx, 1)
			if s.NoError(err) {
				ids[i] = inv.ID
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, s.invoices.Count(), "exactly one invoice despite concurrent triggers")
	s.Len(s.numbers.All(), 1, "exactly one number despite concurrent triggers")
	for _, id := range ids {
		s.Equal(ids[0], id, "every caller must see the same invoice")
	}
}

func (s *GenerateSuite) TestPaymentNotFound() {
	_, err := s.svc.Generate(context.Background(), 404)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *GenerateSuite) TestUnpaidPaymentIsRejected() {
	ctx := context.Background()
	s.seedBuyer(true)
	p := s.seedPayment(1, time.Now())
	p.Status = models.PaymentStatusUnpaid
	p.PaidAt = nil
	s.Require().NoError(s.payments.Put(ctx, p))

	_, err := s.svc.Generate(ctx, 1)
	s.ErrorIs(err, service.ErrPaymentNotInvoiceable)
	s.Equal(0, s.invoices.Count())
	s.Empty(s.numbers.All(), "rejected payments must not consume a number")
}

func (s *GenerateSuite) TestExpiredWindowIsRejected() {
	ctx := context.Background()
	s.seedBuyer(true)
	s.seedPayment(1, time.Now().AddDate(0, 0, -30))

	_, err := s.svc.Generate(ctx, 1)
	s.ErrorIs(err, service.ErrPaymentNotInvoiceable)
}

func (s *GenerateSuite) TestMissingAddressBlocksInvoiceButNotNumber() {
	ctx := context.Background()
	s.seedBuyer(false)
	s.seedPayment(1, time.Now().Add(-time.Hour))

	_, err := s.svc.Generate(ctx, 1)
	s.ErrorIs(err, service.ErrMissingBuyerAddress)
	s.Equal(0, s.invoices.Count())

	// The payment is otherwise invoiceable, so the number is already
	// reserved; adding the address later completes generation with it.
	p, err := s.payments.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(p.InvoiceNumberID)
	reserved := *p.InvoiceNumberID

	s.seedBuyer(true)
	inv, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)
	s.Equal(reserved, inv.InvoiceNumberID)
	s.Len(s.numbers.All(), 1, "the retry must reuse the reserved number")
}

func (s *GenerateSuite) TestNumberAllPaidAssignsNumberToIneligiblePayment() {
	ctx := context.Background()
	cfg := config.InvoicingConfig{
		WindowDays:    15,
		WindowMode:    config.WindowFromPaidDate,
		NumberAllPaid: true,
		LockTTL:       5 * time.Second,
		LockWait:      time.Second,
	}
	svc := s.newService(cfg)

	s.seedBuyer(true)
	// Paid long ago: outside the window, so no invoice, but with
	// NumberAllPaid the number is still consumed.
	s.seedPayment(1, time.Now().AddDate(0, 0, -30))

	_, err := svc.Generate(ctx, 1)
	s.ErrorIs(err, service.ErrPaymentNotInvoiceable)
	s.Equal(0, s.invoices.Count())

	p, err := s.payments.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.NotNil(p.InvoiceNumberID, "number assignment extends to all paid payments")
	s.Len(s.numbers.All(), 1)
}

func (s *GenerateSuite) TestInvoiceDatesComeFromNumber() {
	ctx := context.Background()
	s.seedBuyer(true)
	s.seedPayment(1, time.Now().Add(-time.Hour))

	inv, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)

	number, err := s.numbers.FindByID(ctx, inv.InvoiceNumberID)
	s.Require().NoError(err)
	s.Equal(number.CreatedAt, inv.CreatedDate, "created date tracks number issuance")
	s.Equal(number.CreatedAt, inv.UpdatedDate)
}

func (s *GenerateSuite) TestSnapshotsAreImmutable() {
	ctx := context.Background()
	buyer := s.seedBuyer(true)
	s.seedPayment(1, time.Now().Add(-time.Hour))

	inv, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)
	s.Equal("ACME s.r.o.", inv.Buyer.Name)
	s.Equal(testSupplier.Name, inv.Supplier.Name)
	s.Equal(testSupplier.VatID, inv.Supplier.VatID)

	// Move the buyer; the issued invoice must not follow.
	buyer.InvoiceAddress.Street = "Nova 99"
	buyer.InvoiceAddress.City = "Zilina"
	s.Require().NoError(s.buyers.Put(ctx, buyer))

	reloaded, err := s.invoices.FindByID(ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal("Dlha 5", reloaded.Buyer.Street)
	s.Equal("Kosice", reloaded.Buyer.City)
}

func (s *GenerateSuite) TestBuyerNameFallsBackWhenAddressHasNone() {
	ctx := context.Background()
	b := s.seedBuyer(true)
	b.InvoiceAddress.Name = ""
	s.Require().NoError(s.buyers.Put(ctx, b))
	s.seedPayment(1, time.Now().Add(-time.Hour))

	inv, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)
	s.Equal("Jana Novakova", inv.Buyer.Name)
}

func (s *GenerateSuite) TestSubscriptionPeriodAnnotatesLineItems() {
	ctx := context.Background()
	s.seedBuyer(true)

	paidAt := time.Now().Add(-time.Hour)
	start := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	p := s.seedPayment(1, paidAt)
	p.SubscriptionStart = &start
	p.SubscriptionEnd = &end
	s.Require().NoError(s.payments.Put(ctx, p))

	inv, err := s.svc.Generate(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(inv.Items, 1)
	s.Equal("Premium plan (2026-08-01 - 2026-08-31)", inv.Items[0].Text)
}
