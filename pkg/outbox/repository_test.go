package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := repotest.Open(t).DB()
	svc := NewService(NewRepository(conn), nil)
	groupID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Email: "casey@example.com"}

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventGroupFull,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupID,
			Actor:         actor,
			Data:          map[string]string{"groupId": groupID.String()},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := conn.Where("aggregate_id = ?", groupID).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	var env PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Version != 1 || env.EventID == "" || env.OccurredAt.IsZero() {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Actor == nil || env.Actor.Email != actor.Email {
		t.Fatalf("expected actor to be carried, got %+v", env.Actor)
	}
	if !strings.Contains(string(env.Data), groupID.String()) {
		t.Fatalf("expected data to carry group id, got %s", env.Data)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	if err := svc.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatalf("expected error without transaction")
	}
}

func TestMarkFailedClipsError(t *testing.T) {
	conn := repotest.Open(t).DB()
	repo := NewRepository(conn)
	row := models.OutboxEvent{
		EventType:     enums.EventMemberJoined,
		AggregateType: enums.AggregateGroup,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	if err := repo.Insert(conn, row); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var stored models.OutboxEvent
	if err := conn.First(&stored).Error; err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := repo.MarkFailedTx(conn, stored.ID, errors.New(strings.Repeat("x", 2000))); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := conn.First(&stored, "id = ?", stored.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.AttemptCount != 1 || stored.LastError == nil || len(*stored.LastError) != maxLastErrorLen {
		t.Fatalf("unexpected failure state attempts=%d err=%v", stored.AttemptCount, stored.LastError)
	}
}

func TestDeleteSettledBefore(t *testing.T) {
	conn := repotest.Open(t).DB()
	repo := NewRepository(conn)
	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	rows := []models.OutboxEvent{
		{ID: uuid.New(), PublishedAt: &old, CreatedAt: old},
		{ID: uuid.New(), PublishedAt: &recent, CreatedAt: old},
		{ID: uuid.New(), AttemptCount: 10, CreatedAt: old},
		{ID: uuid.New(), AttemptCount: 2, CreatedAt: old},
	}
	for i := range rows {
		rows[i].EventType = enums.EventGroupStatusChanged
		rows[i].AggregateType = enums.AggregateGroup
		rows[i].AggregateID = uuid.New()
		rows[i].Payload = json.RawMessage(`{}`)
		if err := conn.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	deleted, err := repo.DeleteSettledBefore(conn, time.Now().UTC().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 purged rows, got %d", deleted)
	}
	var left int64
	conn.Model(&models.OutboxEvent{}).Count(&left)
	if left != 2 {
		t.Fatalf("expected recent and retrying rows to remain, got %d", left)
	}
}

func TestDLQInsertValidatesReason(t *testing.T) {
	conn := repotest.Open(t).DB()
	dlq := NewDLQRepository(conn)
	entry := models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventInvitationCreated,
		AggregateType: enums.AggregateInvitee,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   "lost",
		AttemptCount:  3,
	}
	if err := dlq.InsertTx(conn, entry); err == nil {
		t.Fatalf("expected unknown reason to be rejected")
	}

	msg := strings.Repeat("y", 1500)
	entry.ErrorReason = enums.OutboxDLQReasonMaxAttempts
	entry.ErrorMessage = &msg
	if err := dlq.InsertTx(conn, entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var stored models.OutboxDLQ
	if err := conn.First(&stored, "event_id = ?", entry.EventID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.ErrorMessage == nil || len(*stored.ErrorMessage) != maxLastErrorLen {
		t.Fatalf("expected clipped message")
	}
	if err := dlq.InsertTx(nil, entry); err == nil {
		t.Fatalf("expected error without transaction")
	}
}
