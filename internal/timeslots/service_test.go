package timeslots

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := repotest.Open(t)
	svc, err := NewService(client, groups.NewRepository(client.DB()), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, client
}

func TestNewServiceValidation(t *testing.T) {
	client := repotest.Open(t)
	if _, err := NewService(nil, groups.NewRepository(client.DB()), nil); err == nil {
		t.Fatal("expected error without tx runner")
	}
	if _, err := NewService(client, nil, nil); err == nil {
		t.Fatal("expected error without repository")
	}
}

func TestServiceAnalysis(t *testing.T) {
	svc, client := newTestService(t)
	seeded := repotest.SeedGroup(t, client.DB(), repotest.GroupFixture{Max: 3, Members: 1, Slots: 2})
	repotest.Select(t, client.DB(), seeded.Participants[0], seeded.Slots...)
	repotest.Select(t, client.DB(), seeded.Participants[1], seeded.Slots[1])

	member := auth.Identity{ID: seeded.Participants[1].UserID}
	res, err := svc.Analysis(context.Background(), seeded.Group.ID, member)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if res.Participants != 2 || len(res.Slots) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Slots[0].IsUniversal || !res.Slots[1].IsUniversal {
		t.Fatalf("expected only slot 2 universal: %+v", res.Slots)
	}
	if len(res.UniversalSlotIDs) != 1 || res.UniversalSlotIDs[0] != seeded.Slots[1].ID {
		t.Fatalf("expected universal ids [%s], got %v", seeded.Slots[1].ID, res.UniversalSlotIDs)
	}

	_, err = svc.Analysis(context.Background(), seeded.Group.ID, auth.Identity{ID: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}

func TestChooseFinal(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	seeded := repotest.SeedGroup(t, client.DB(), repotest.GroupFixture{Max: 2, Members: 1, Status: enums.GroupStatusFull, Slots: 2})
	creator := auth.Identity{ID: seeded.Group.CreatorUserID}
	member := auth.Identity{ID: seeded.Participants[1].UserID}

	if _, err := svc.ChooseFinal(ctx, seeded.Group.ID, member, seeded.Slots[0].ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := svc.ChooseFinal(ctx, seeded.Group.ID, creator, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for foreign slot, got %v", err)
	}

	res, err := svc.ChooseFinal(ctx, seeded.Group.ID, creator, seeded.Slots[0].ID)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if res.FinalTimeSlotID == nil || *res.FinalTimeSlotID != seeded.Slots[0].ID {
		t.Fatalf("expected final slot set, got %+v", res.FinalTimeSlotID)
	}

	if _, err := svc.ChooseFinal(ctx, seeded.Group.ID, creator, seeded.Slots[0].ID); err != nil {
		t.Fatalf("same choice should be a no-op: %v", err)
	}
	if _, err := svc.ChooseFinal(ctx, seeded.Group.ID, creator, seeded.Slots[1].ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on a different choice, got %v", err)
	}
}

func TestChooseFinalRequiresFullGroup(t *testing.T) {
	svc, client := newTestService(t)
	seeded := repotest.SeedGroup(t, client.DB(), repotest.GroupFixture{Max: 3, Members: 1, Slots: 1})
	creator := auth.Identity{ID: seeded.Group.CreatorUserID}

	_, err := svc.ChooseFinal(context.Background(), seeded.Group.ID, creator, seeded.Slots[0].ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
