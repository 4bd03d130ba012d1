package sequence

import (
	"errors"
	"fmt"
	"time"
)

// maxMonthlySequence is the widest sequence the printed format can carry.
// Overflow must fail loudly; wrapping would collide with number 1 of the
// same month and break the global uniqueness of invoice numbers.
const maxMonthlySequence = 99999

// ErrSequenceOverflow signals that a calendar month ran out of number slots.
var ErrSequenceOverflow = errors.New("monthly invoice number sequence exhausted")

// Format renders the externally visible invoice number: two-digit year,
// literal 'm', two-digit month, five-digit zero-padded sequence. The first
// number of April 2001 is "01m0400001". This format is printed on documents
// and must not change without a migration plan.
func Format(deliveredAt time.Time, seq int) (string, error) {
	if seq < 1 || seq > maxMonthlySequence {
		return "", fmt.Errorf("%w: sequence %d in %s", ErrSequenceOverflow, seq, deliveredAt.Format("2006-01"))
	}
	return fmt.Sprintf("%02dm%02d%05d", deliveredAt.Year()%100, int(deliveredAt.Month()), seq), nil
}
