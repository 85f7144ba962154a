package funding

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

func testBatch(groupID uuid.UUID) *models.PaymentRequestBatch {
	return &models.PaymentRequestBatch{
		ID:              uuid.New(),
		GroupID:         groupID,
		TotalCostCents:  43000,
		ServiceFeeCents: 4300,
		Method:          enums.PaymentMethodZelle,
		MethodDetails:   json.RawMessage(`{"email":"casey@example.com"}`),
		Description:     "Dumpster rental",
		CreatedBy:       uuid.New(),
	}
}

func TestActiveBatchIndexAllowsOneLiveBatch(t *testing.T) {
	client := repotest.Open(t)
	conn := client.DB()
	repo := NewRepository(conn)
	seeded := repotest.SeedGroup(t, conn, repotest.GroupFixture{Members: 1, Status: enums.GroupStatusFull})

	if !conn.Migrator().HasIndex(&models.PaymentRequestBatch{}, ActiveBatchIndex) {
		t.Fatalf("expected index %s after automigrate", ActiveBatchIndex)
	}

	first := testBatch(seeded.Group.ID)
	if err := repo.CreateBatchTx(conn, first, nil); err != nil {
		t.Fatalf("create first batch: %v", err)
	}
	err := repo.CreateBatchTx(conn, testBatch(seeded.Group.ID), nil)
	if !db.IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation for a second live batch, got %v", err)
	}

	if err := repo.SupersedeBatchTx(conn, first.ID, time.Now()); err != nil {
		t.Fatalf("supersede: %v", err)
	}
	second := testBatch(seeded.Group.ID)
	if err := repo.CreateBatchTx(conn, second, nil); err != nil {
		t.Fatalf("superseded batches must not block a new one: %v", err)
	}
	active, err := repo.ActiveBatch(context.Background(), nil, seeded.Group.ID)
	if err != nil {
		t.Fatalf("active batch: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected %s active, got %s", second.ID, active.ID)
	}
}
