package disbursement

import (
	"context"
	"iter"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/pagination"
)

const iterPageSize = 50

// TransactionLog is the instrument summary plus lazy access to its
// append-only transaction log.
type TransactionLog struct {
	Instrument InstrumentDTO `json:"instrument"`
	// Stale is set when the gateway could not be reached to pull new
	// authorizations; the log is served from what is already recorded.
	Stale bool `json:"stale"`

	repo         *Repository
	instrumentID uuid.UUID
}

// Page returns one newest-first slice of the log.
func (l *TransactionLog) Page(ctx context.Context, params pagination.Params) (pagination.Page[TransactionDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[TransactionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"cursor": "invalid"})
	}
	return l.page(ctx, cursor, params.Limit)
}

func (l *TransactionLog) page(ctx context.Context, cursor *pagination.Cursor, limit int) (pagination.Page[TransactionDTO], error) {
	rows, err := l.repo.ListTransactions(ctx, l.instrumentID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return pagination.Page[TransactionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	trimmed := pagination.Trim(rows, limit, func(m models.InstrumentTransaction) pagination.Cursor {
		return pagination.Cursor{At: m.OccurredAt, ID: m.ID}
	})
	out := pagination.Page[TransactionDTO]{
		Items:      make([]TransactionDTO, 0, len(trimmed.Items)),
		NextCursor: trimmed.NextCursor,
	}
	for _, m := range trimmed.Items {
		out.Items = append(out.Items, transactionFromModel(m))
	}
	return out, nil
}

// All streams the whole log newest first. Each range starts from the newest
// row again.
func (l *TransactionLog) All(ctx context.Context) iter.Seq2[TransactionDTO, error] {
	return func(yield func(TransactionDTO, error) bool) {
		var cursor *pagination.Cursor
		for {
			page, err := l.page(ctx, cursor, iterPageSize)
			if err != nil {
				yield(TransactionDTO{}, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			next, err := pagination.ParseCursor(page.NextCursor)
			if err != nil {
				yield(TransactionDTO{}, err)
				return
			}
			cursor = next
		}
	}
}
