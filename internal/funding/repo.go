package funding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// ActiveBatchIndex is the partial unique index allowing one live batch per group.
const ActiveBatchIndex = "ux_payment_request_batches_active"

// Repository persists payment request batches and their requests.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to funding operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ActiveBatch returns the group's live batch.
func (r *Repository) ActiveBatch(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (*models.PaymentRequestBatch, error) {
	var batch models.PaymentRequestBatch
	err := r.Conn(ctx, tx).
		Where("group_id = ? AND superseded_at IS NULL", groupID).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// CreateBatchTx inserts a batch and its requests.
func (r *Repository) CreateBatchTx(tx *gorm.DB, batch *models.PaymentRequestBatch, requests []models.PaymentRequest) error {
	if err := tx.Create(batch).Error; err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}
	return tx.Create(&requests).Error
}

// SupersedeBatchTx retires a batch and its unpaid requests.
func (r *Repository) SupersedeBatchTx(tx *gorm.DB, batchID uuid.UUID, at time.Time) error {
	if err := tx.Model(&models.PaymentRequestBatch{}).
		Where("id = ? AND superseded_at IS NULL", batchID).
		Update("superseded_at", at).Error; err != nil {
		return err
	}
	return tx.Model(&models.PaymentRequest{}).
		Where("batch_id = ? AND status = ?", batchID, enums.PaymentRequestPending).
		Update("status", enums.PaymentRequestSuperseded).Error
}

// ListRequests returns a batch's requests ordered by payer position.
func (r *Repository) ListRequests(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]models.PaymentRequest, error) {
	var rows []models.PaymentRequest
	err := r.Conn(ctx, tx).
		Table("payment_requests").
		Select("payment_requests.*").
		Joins("LEFT JOIN participants ON participants.id = payment_requests.payer_participant_id").
		Where("payment_requests.batch_id = ?", batchID).
		Order("participants.position ASC, payment_requests.created_at ASC").
		Find(&rows).Error
	return rows, err
}

// CountByStatus counts requests of a batch in the given status.
func (r *Repository) CountByStatus(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, status enums.PaymentRequestStatus) (int64, error) {
	var count int64
	err := r.Conn(ctx, tx).Model(&models.PaymentRequest{}).
		Where("batch_id = ? AND status = ?", batchID, status).
		Count(&count).Error
	return count, err
}

// FindRequest loads one request.
func (r *Repository) FindRequest(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	if err := r.Conn(ctx, tx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// LockRequestTx loads one request under a row lock.
func (r *Repository) LockRequestTx(tx *gorm.DB, id uuid.UUID) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	if err := repo.ForUpdate(tx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// MarkPaidTx flips a pending request to paid. It reports false when the
// request was not pending.
func (r *Repository) MarkPaidTx(tx *gorm.DB, id uuid.UUID, at time.Time, gatewayPaymentID *string) (bool, error) {
	updates := map[string]any{"status": enums.PaymentRequestPaid, "paid_at": at}
	if gatewayPaymentID != nil {
		updates["gateway_payment_id"] = *gatewayPaymentID
	}
	res := tx.Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ?", id, enums.PaymentRequestPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetGroupTotalTx stores the finalized cost on the group.
func (r *Repository) SetGroupTotalTx(tx *gorm.DB, groupID uuid.UUID, totalCents int64) error {
	return tx.Model(&models.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{"total_cost_cents": totalCents, "updated_at": time.Now().UTC()}).Error
}
