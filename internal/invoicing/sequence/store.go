// Package sequence assigns gap-free monotonic invoice numbers scoped to the
// calendar month of the delivery date.
//
// Numbering is race-safe through the insert-then-count technique: a new row
// first reserves a monotonically increasing id, then the rows of the same
// (year, month) with a smaller id are counted, and count+1 becomes the
// sequence. Both steps plus persisting the formatted number run as one
// atomic unit. The order matters: counting before inserting reintroduces
// the race the row id exists to prevent.
package sequence

import (
	"context"
	"time"

	"fakturo/internal/invoicing/models"
)

// NumberStore issues and looks up invoice numbers.
//
// Issue performs the whole reserve → count → format → persist unit
// atomically (one SQL transaction in Postgres, one mutex hold in memory)
// and returns the finished row. It fails with ErrSequenceOverflow when the
// month is full; numbers are never reused and rows are never deleted.
type NumberStore interface {
	Issue(ctx context.Context, deliveredAt time.Time) (*models.InvoiceNumber, error)
	FindByID(ctx context.Context, id int64) (*models.InvoiceNumber, error)
}
