//go:build integration

package sequence_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fakturo/internal/invoicing/sequence"
	"fakturo/pkg/testutil/containers"
)

type PostgresNumberStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *sequence.PostgresNumberStore
}

func TestPostgresNumberStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresNumberStoreSuite))
}

func (s *PostgresNumberStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = sequence.NewPostgres(s.postgres.DB)
}

func (s *PostgresNumberStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "invoice_numbers")
	s.Require().NoError(err)
}

func (s *PostgresNumberStoreSuite) TestSequencePerMonth() {
	ctx := context.Background()

	april := time.Date(2001, time.April, 15, 12, 0, 0, 0, time.UTC)

	first, err := s.store.Issue(ctx, april)
	s.Require().NoError(err)
	s.Equal("01m0400001", first.Number)

	second, err := s.store.Issue(ctx, april.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.Equal("01m0400002", second.Number)

	// Backfill with an earlier delivery date takes the next slot, not an
	// intermediate one.
	backfilled, err := s.store.Issue(ctx, april.AddDate(0, 0, -1))
	s.Require().NoError(err)
	s.Equal("01m0400003", backfilled.Number)

	may, err := s.store.Issue(ctx, time.Date(2001, time.May, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal("01m0500001", may.Number, "a new month restarts at 1")
}

// TestConcurrentIssueIsGapFree is the core numbering guarantee: under
// concurrent issuance every number of the month is unique and the sequence
// has no holes.
func (s *PostgresNumberStoreSuite) TestConcurrentIssueIsGapFree() {
	ctx := context.Background()
	deliveredAt := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

	const workers = 50
	numbers := make(chan string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row, err := s.store.Issue(ctx, deliveredAt)
			if s.NoError(err) {
				numbers <- row.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for n := range numbers {
		s.False(seen[n], "number %s issued twice", n)
		seen[n] = true
	}
	s.Len(seen, workers)

	for i := 1; i <= workers; i++ {
		want := fmt.Sprintf("26m08%05d", i)
		s.True(seen[want], "sequence hole at %s", want)
	}
}

func (s *PostgresNumberStoreSuite) TestFindByID() {
	ctx := context.Background()

	row, err := s.store.Issue(ctx, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, row.ID)
	s.Require().NoError(err)
	s.Equal(row.Number, found.Number)
	s.WithinDuration(row.DeliveredAt, found.DeliveredAt, time.Second)
}
