package memberships

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/internal/timeslots"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/security"
)

type harness struct {
	svc    Service
	client *db.Client
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client := repotest.Open(t)
	groupRepo := groups.NewRepository(client.DB())
	analysis, err := timeslots.NewService(client, groupRepo, nil)
	if err != nil {
		t.Fatalf("timeslots service: %v", err)
	}
	svc, err := NewService(
		client,
		NewRepository(client.DB()),
		groupRepo,
		outbox.NewService(outbox.NewRepository(client.DB()), nil),
		analysis,
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return harness{svc: svc, client: client}
}

// invite adds an open invitation and returns its raw token.
func (h harness) invite(t *testing.T, groupID uuid.UUID, email string) string {
	t.Helper()
	token, err := security.NewJoinToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	row := models.Invitee{
		GroupID:         groupID,
		Name:            "Invitee " + email,
		Email:           email,
		JoinTokenDigest: security.DigestJoinToken(token),
	}
	if err := h.client.DB().Create(&row).Error; err != nil {
		t.Fatalf("seed invitee: %v", err)
	}
	return token
}

func (h harness) reload(t *testing.T, groupID uuid.UUID) models.Group {
	t.Helper()
	var g models.Group
	if err := h.client.DB().First(&g, "id = ?", groupID).Error; err != nil {
		t.Fatalf("reload group: %v", err)
	}
	return g
}

func TestNewServiceValidation(t *testing.T) {
	client := repotest.Open(t)
	groupRepo := groups.NewRepository(client.DB())
	analysis, _ := timeslots.NewService(client, groupRepo, nil)
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	repository := NewRepository(client.DB())

	if _, err := NewService(nil, repository, groupRepo, publisher, analysis, nil); err == nil {
		t.Fatal("expected error without tx runner")
	}
	if _, err := NewService(client, nil, groupRepo, publisher, analysis, nil); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewService(client, repository, nil, publisher, analysis, nil); err == nil {
		t.Fatal("expected error without group repository")
	}
	if _, err := NewService(client, repository, groupRepo, nil, analysis, nil); err == nil {
		t.Fatal("expected error without publisher")
	}
	if _, err := NewService(client, repository, groupRepo, publisher, nil, nil); err == nil {
		t.Fatal("expected error without analysis")
	}
}

func TestGetJoinInfo(t *testing.T) {
	h := newHarness(t)
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 3, Slots: 2})
	token := h.invite(t, seeded.Group.ID, "alex@example.com")

	info, err := h.svc.GetJoinInfo(context.Background(), token)
	if err != nil {
		t.Fatalf("join info: %v", err)
	}
	if info.GroupID != seeded.Group.ID || info.Invitee.Email != "alex@example.com" || len(info.TimeSlots) != 2 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.CreatorName != seeded.Group.CreatorName {
		t.Fatalf("expected creator name, got %q", info.CreatorName)
	}

	if _, err := h.svc.GetJoinInfo(context.Background(), "bogus"); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrExpiredToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestJoinHappyPath(t *testing.T) {
	h := newHarness(t)
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 3, Slots: 2})
	token := h.invite(t, seeded.Group.ID, "alex@example.com")
	identity := auth.Identity{ID: uuid.New(), Email: "Alex@Example.com", DisplayName: "Alex"}

	res, err := h.svc.Join(context.Background(), token, identity, []uuid.UUID{seeded.Slots[0].ID, seeded.Slots[0].ID})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if res.Participant.Position != 2 || res.Group.CurrentParticipants != 2 {
		t.Fatalf("unexpected join result %+v", res)
	}
	if res.Group.Status != enums.GroupStatusForming {
		t.Fatalf("expected still forming, got %s", res.Group.Status)
	}
	if res.Analysis.Slots[0].SelectedByCount != 1 {
		t.Fatalf("expected duplicate ids collapsed, got %+v", res.Analysis.Slots[0])
	}
	if got := len(repotest.Events(t, h.client.DB(), enums.EventMemberJoined)); got != 1 {
		t.Fatalf("expected member_joined event, got %d", got)
	}

	if _, err := h.svc.Join(context.Background(), token, identity, []uuid.UUID{seeded.Slots[0].ID}); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrExpiredToken) {
		t.Fatalf("reused token should be invalid, got %v", err)
	}
}

func TestJoinRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 3, Slots: 1})
	token := h.invite(t, seeded.Group.ID, "alex@example.com")

	_, err := h.svc.Join(ctx, token, auth.Identity{ID: uuid.New(), Email: "someone@example.com"}, []uuid.UUID{seeded.Slots[0].ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeIdentityMismatch) {
		t.Fatalf("expected identity mismatch, got %v", err)
	}

	alex := auth.Identity{ID: uuid.New(), Email: "alex@example.com"}
	_, err = h.svc.Join(ctx, token, alex, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeTimeSlotSelectionRequired) {
		t.Fatalf("expected selection required, got %v", err)
	}
	_, err = h.svc.Join(ctx, token, alex, []uuid.UUID{uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// failed attempts leave the invitation usable
	if _, err := h.svc.Join(ctx, token, alex, []uuid.UUID{seeded.Slots[0].ID}); err != nil {
		t.Fatalf("join after failures: %v", err)
	}

	second := h.invite(t, seeded.Group.ID, "blair@example.com")
	_, err = h.svc.Join(ctx, second, auth.Identity{ID: alex.ID, Email: "blair@example.com"}, []uuid.UUID{seeded.Slots[0].ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for an already joined user, got %v", err)
	}
}

func TestJoinGroupWithoutSlotsAcceptsEmptySelection(t *testing.T) {
	h := newHarness(t)
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 2})
	token := h.invite(t, seeded.Group.ID, "alex@example.com")

	res, err := h.svc.Join(context.Background(), token, auth.Identity{ID: uuid.New(), Email: "alex@example.com"}, nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(res.Analysis.Slots) != 0 {
		t.Fatalf("expected empty analysis, got %+v", res.Analysis.Slots)
	}
}

func TestFillThenLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 3, Slots: 1})
	slot := []uuid.UUID{seeded.Slots[0].ID}

	tokens := []string{
		h.invite(t, seeded.Group.ID, "a@example.com"),
		h.invite(t, seeded.Group.ID, "b@example.com"),
		h.invite(t, seeded.Group.ID, "c@example.com"),
	}
	if _, err := h.svc.Join(ctx, tokens[0], auth.Identity{ID: uuid.New(), Email: "a@example.com"}, slot); err != nil {
		t.Fatalf("first join: %v", err)
	}
	res, err := h.svc.Join(ctx, tokens[1], auth.Identity{ID: uuid.New(), Email: "b@example.com"}, slot)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if res.Group.Status != enums.GroupStatusFull {
		t.Fatalf("expected full after last seat, got %s", res.Group.Status)
	}
	if got := len(repotest.Events(t, h.client.DB(), enums.EventGroupFull)); got != 1 {
		t.Fatalf("expected one group_full event, got %d", got)
	}

	_, err = h.svc.Join(ctx, tokens[2], auth.Identity{ID: uuid.New(), Email: "c@example.com"}, slot)
	if !pkgerrors.IsCode(err, pkgerrors.CodeGroupFull) {
		t.Fatalf("expected group full, got %v", err)
	}

	creator := auth.Identity{ID: seeded.Group.CreatorUserID}
	_, err = h.svc.UpdateSelections(ctx, seeded.Group.ID, creator, slot)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected selections locked once full, got %v", err)
	}
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	h := newHarness(t)
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 4})

	const attempts = 8
	tokens := make([]string, attempts)
	identities := make([]auth.Identity, attempts)
	for i := range tokens {
		email := uuid.NewString() + "@example.com"
		tokens[i] = h.invite(t, seeded.Group.ID, email)
		identities[i] = auth.Identity{ID: uuid.New(), Email: email}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.Join(context.Background(), tokens[i], identities[i], nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case pkgerrors.IsCode(err, pkgerrors.CodeGroupFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if joined != 3 || full != attempts-3 {
		t.Fatalf("expected 3 joins and %d rejections, got %d/%d", attempts-3, joined, full)
	}
	group := h.reload(t, seeded.Group.ID)
	if group.CurrentParticipants != group.MaxParticipants || group.Status != enums.GroupStatusFull {
		t.Fatalf("unexpected final group %+v", group)
	}
	var count int64
	h.client.DB().Model(&models.Participant{}).Where("group_id = ?", seeded.Group.ID).Count(&count)
	if count != int64(group.MaxParticipants) {
		t.Fatalf("expected %d participants, got %d", group.MaxParticipants, count)
	}
}

func TestUniversalSlotBreaksWhenMemberJoins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 4, Members: 1, Slots: 2})
	creator := auth.Identity{ID: seeded.Group.CreatorUserID}
	member := auth.Identity{ID: seeded.Participants[1].UserID}

	if _, err := h.svc.UpdateSelections(ctx, seeded.Group.ID, creator, []uuid.UUID{seeded.Slots[0].ID}); err != nil {
		t.Fatalf("creator selections: %v", err)
	}
	res, err := h.svc.UpdateSelections(ctx, seeded.Group.ID, member, []uuid.UUID{seeded.Slots[0].ID, seeded.Slots[1].ID})
	if err != nil {
		t.Fatalf("member selections: %v", err)
	}
	if !res.Slots[0].IsUniversal || res.Slots[1].IsUniversal {
		t.Fatalf("expected slot 1 universal, got %+v", res.Slots)
	}

	token := h.invite(t, seeded.Group.ID, "late@example.com")
	joined, err := h.svc.Join(ctx, token, auth.Identity{ID: uuid.New(), Email: "late@example.com"}, []uuid.UUID{seeded.Slots[1].ID})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, slot := range joined.Analysis.Slots {
		if slot.IsUniversal {
			t.Fatalf("no slot should be universal after the join: %+v", joined.Analysis.Slots)
		}
	}

	// clearing a selection is allowed
	res, err = h.svc.UpdateSelections(ctx, seeded.Group.ID, creator, nil)
	if err != nil {
		t.Fatalf("clear selections: %v", err)
	}
	if res.Slots[0].SelectedByCount != 1 {
		t.Fatalf("expected one remaining selection on slot 1, got %+v", res.Slots[0])
	}
}

func TestUpdateSelectionsAndListMembersRequireParticipant(t *testing.T) {
	h := newHarness(t)
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Max: 3, Members: 1, Slots: 1})
	outsider := auth.Identity{ID: uuid.New()}

	if _, err := h.svc.UpdateSelections(context.Background(), seeded.Group.ID, outsider, nil); !pkgerrors.IsCode(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := h.svc.ListMembers(context.Background(), seeded.Group.ID, outsider); !pkgerrors.IsCode(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	members, err := h.svc.ListMembers(context.Background(), seeded.Group.ID, auth.Identity{ID: seeded.Participants[1].UserID})
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 || members[0].Position != 1 || !members[0].IsCreator {
		t.Fatalf("unexpected members %+v", members)
	}
}
