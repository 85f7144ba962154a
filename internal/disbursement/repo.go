package disbursement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/pagination"
)

// Repository persists instruments and their transaction log.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) FindByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (*models.DisbursementInstrument, error) {
	var inst models.DisbursementInstrument
	if err := r.Conn(ctx, tx).Where("group_id = ?", groupID).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *Repository) FindByGatewayID(ctx context.Context, gatewayID string) (*models.DisbursementInstrument, error) {
	var inst models.DisbursementInstrument
	if err := r.Conn(ctx, nil).Where("gateway_instrument_id = ?", gatewayID).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *Repository) CreateTx(tx *gorm.DB, inst *models.DisbursementInstrument) error {
	return tx.Create(inst).Error
}

// UpdateStatus moves an instrument from one status to another. It reports
// false when the instrument was not in the expected status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.InstrumentStatus) (bool, error) {
	res := r.Conn(ctx, nil).Model(&models.DisbursementInstrument{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetStatus overwrites the status with whatever the gateway reports.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.InstrumentStatus) error {
	return r.Conn(ctx, nil).Model(&models.DisbursementInstrument{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *Repository) UpdateLimit(ctx context.Context, id uuid.UUID, limitCents int64) error {
	return r.Conn(ctx, nil).Model(&models.DisbursementInstrument{}).
		Where("id = ?", id).
		Updates(map[string]any{"spending_limit_cents": limitCents, "updated_at": time.Now().UTC()}).Error
}

// AppendTransaction inserts a transaction once per gateway id. It reports
// whether a new row was written.
func (r *Repository) AppendTransaction(ctx context.Context, txn *models.InstrumentTransaction) (bool, error) {
	res := r.Conn(ctx, nil).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "gateway_transaction_id"}}, DoNothing: true}).
		Create(txn)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateTransactionStatus applies a later gateway decision to a logged row.
func (r *Repository) UpdateTransactionStatus(ctx context.Context, gatewayID string, status enums.TransactionStatus, amountCents int64) error {
	return r.Conn(ctx, nil).Model(&models.InstrumentTransaction{}).
		Where("gateway_transaction_id = ?", gatewayID).
		Updates(map[string]any{"status": status, "amount_cents": amountCents}).Error
}

// LatestTransactionAt returns the newest logged occurrence, or nil when empty.
func (r *Repository) LatestTransactionAt(ctx context.Context, instrumentID uuid.UUID) (*time.Time, error) {
	var row models.InstrumentTransaction
	err := r.Conn(ctx, nil).
		Where("instrument_id = ?", instrumentID).
		Order("occurred_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row.OccurredAt, nil
}

// ListTransactions returns up to limit rows newest first, strictly after the
// cursor position.
func (r *Repository) ListTransactions(ctx context.Context, instrumentID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InstrumentTransaction, error) {
	q := r.Conn(ctx, nil).
		Where("instrument_id = ?", instrumentID)
	if cursor != nil {
		q = q.Where("(occurred_at < ?) OR (occurred_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}
	var rows []models.InstrumentTransaction
	err := q.Order("occurred_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// SumApproved totals approved spend on an instrument.
func (r *Repository) SumApproved(ctx context.Context, instrumentID uuid.UUID) (int64, error) {
	var total int64
	err := r.Conn(ctx, nil).Model(&models.InstrumentTransaction{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("instrument_id = ? AND status = ?", instrumentID, enums.TransactionApproved).
		Scan(&total).Error
	return total, err
}
