package disbursement

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/pagination"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/stripe"
)

type fakeGateway struct {
	issued      int
	issueErr    error
	activeCalls []bool
	activeErr   error
	limits      []int64
	authz       []stripe.Authorization
	authzErr    error
	revealCalls int
}

func (f *fakeGateway) IssueCard(_ context.Context, params stripe.IssueCardParams) (*stripe.Card, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issued++
	return &stripe.Card{ID: "ic_" + params.GroupID[:8], Status: "active", LimitCents: params.LimitCents}, nil
}

func (f *fakeGateway) SetCardActive(_ context.Context, cardID string, active bool) (*stripe.Card, error) {
	f.activeCalls = append(f.activeCalls, active)
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	status := "inactive"
	if active {
		status = "active"
	}
	return &stripe.Card{ID: cardID, Status: status}, nil
}

func (f *fakeGateway) SetSpendingLimit(_ context.Context, cardID string, limitCents int64) (*stripe.Card, error) {
	f.limits = append(f.limits, limitCents)
	return &stripe.Card{ID: cardID, Status: "active", LimitCents: limitCents}, nil
}

func (f *fakeGateway) Authorizations(_ context.Context, _ string) iter.Seq2[stripe.Authorization, error] {
	return func(yield func(stripe.Authorization, error) bool) {
		if f.authzErr != nil {
			yield(stripe.Authorization{}, f.authzErr)
			return
		}
		for _, a := range f.authz {
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (f *fakeGateway) CreateRevealKey(_ context.Context, cardID, _ string) (*stripe.RevealKey, error) {
	f.revealCalls++
	return &stripe.RevealKey{ID: "ephkey_1", Secret: "ek_secret_" + cardID, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

type fakeGate struct {
	err      error
	revealed int
}

func (f *fakeGate) RequireVerified(context.Context, uuid.UUID, auth.Identity) error {
	return f.err
}

func (f *fakeGate) RecordReveal(context.Context, uuid.UUID, auth.Identity) {
	f.revealed++
}

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

type harness struct {
	svc     *service
	client  *db.Client
	gateway *fakeGateway
	gate    *fakeGate
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client := repotest.Open(t)
	h := harness{client: client, gateway: &fakeGateway{}, gate: &fakeGate{}}
	svc, err := NewService(ServiceParams{
		TransactionRunner: client,
		Repo:              NewRepository(client.DB()),
		Groups:            groups.NewRepository(client.DB()),
		Outbox:            outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Gateway:           h.gateway,
		Gate:              h.gate,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc.(*service)
	return h
}

func (h harness) bookedGroup(t *testing.T) (repotest.Seeded, auth.Identity) {
	t.Helper()
	seeded := repotest.SeedGroup(t, h.client.DB(), repotest.GroupFixture{Members: 2, Status: enums.GroupStatusBooked})
	creator := seeded.Creator()
	return seeded, auth.Identity{ID: creator.UserID, Email: creator.Email}
}

func (h harness) issued(t *testing.T, limit int64) (repotest.Seeded, auth.Identity) {
	t.Helper()
	seeded, creator := h.bookedGroup(t)
	if err := h.svc.Issue(context.Background(), &seeded.Group, limit); err != nil {
		t.Fatalf("issue: %v", err)
	}
	return seeded, creator
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestIssuePersistsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded, creator := h.issued(t, 38700)

	got, err := h.svc.Get(ctx, seeded.Group.ID, creator)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != enums.InstrumentActive || got.SpendingLimitCents != 38700 || got.RemainingCents != 38700 {
		t.Fatalf("unexpected instrument %+v", got)
	}
	if events := repotest.Events(t, h.client.DB(), enums.EventInstrumentIssued); len(events) != 1 {
		t.Fatalf("expected one instrument_issued event, got %d", len(events))
	}

	err = h.svc.Issue(ctx, &seeded.Group, 38700)
	expectCode(t, err, pkgerrors.CodeInstrumentAlreadyIssued)
	if h.gateway.issued != 1 {
		t.Fatalf("gateway should be called once, got %d", h.gateway.issued)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	seeded, _ := h.bookedGroup(t)
	expectCode(t, h.svc.Issue(context.Background(), &seeded.Group, 0), pkgerrors.CodeValidation)
	expectCode(t, h.svc.Issue(context.Background(), nil, 100), pkgerrors.CodeValidation)
}

func TestIssueDeactivatesCardWhenRecordFails(t *testing.T) {
	h := newHarness(t)
	h.svc.outbox = failingOutbox{}
	seeded, _ := h.bookedGroup(t)

	err := h.svc.Issue(context.Background(), &seeded.Group, 5000)
	expectCode(t, err, pkgerrors.CodeDependency)
	if len(h.gateway.activeCalls) != 1 || h.gateway.activeCalls[0] {
		t.Fatalf("expected orphaned card to be deactivated, got %v", h.gateway.activeCalls)
	}
	var count int64
	h.client.DB().Model(&models.DisbursementInstrument{}).Count(&count)
	if count != 0 {
		t.Fatalf("instrument row should be rolled back")
	}
}

func TestIssueGatewayFailure(t *testing.T) {
	h := newHarness(t)
	h.gateway.issueErr = pkgerrors.New(pkgerrors.CodeGatewayTimeout, "timed out")
	seeded, _ := h.bookedGroup(t)
	expectCode(t, h.svc.Issue(context.Background(), &seeded.Group, 5000), pkgerrors.CodeGatewayTimeout)
}

func TestFreezeUnfreeze(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded, creator := h.issued(t, 10000)

	_, err := h.svc.Freeze(ctx, seeded.Group.ID, auth.Identity{ID: seeded.Participants[1].UserID})
	expectCode(t, err, pkgerrors.CodeNotAuthorized)

	frozen, err := h.svc.Freeze(ctx, seeded.Group.ID, creator)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if frozen.Status != enums.InstrumentFrozen {
		t.Fatalf("status %s", frozen.Status)
	}
	if _, err := h.svc.Freeze(ctx, seeded.Group.ID, creator); err != nil {
		t.Fatalf("repeat freeze: %v", err)
	}
	if len(h.gateway.activeCalls) != 1 {
		t.Fatalf("repeat freeze must not call the gateway, calls=%v", h.gateway.activeCalls)
	}

	h.gateway.activeErr = pkgerrors.New(pkgerrors.CodeGatewayError, "gateway down")
	_, err = h.svc.Unfreeze(ctx, seeded.Group.ID, creator)
	expectCode(t, err, pkgerrors.CodeGatewayError)
	still, _ := h.svc.Get(ctx, seeded.Group.ID, creator)
	if still.Status != enums.InstrumentFrozen {
		t.Fatalf("failed gateway call must not change status, got %s", still.Status)
	}

	h.gateway.activeErr = nil
	active, err := h.svc.Unfreeze(ctx, seeded.Group.ID, creator)
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if active.Status != enums.InstrumentActive {
		t.Fatalf("status %s", active.Status)
	}
}

func TestFreezeWithoutInstrument(t *testing.T) {
	h := newHarness(t)
	seeded, creator := h.bookedGroup(t)
	_, err := h.svc.Freeze(context.Background(), seeded.Group.ID, creator)
	expectCode(t, err, pkgerrors.CodeInstrumentNotFound)
}

func TestLimitChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded, creator := h.issued(t, 10000)
	card, _ := h.svc.repo.FindByGroup(ctx, nil, seeded.Group.ID)

	if err := h.svc.RecordGatewayTransaction(ctx, GatewayTransaction{
		GatewayCardID: card.GatewayInstrumentID, GatewayTransactionID: "iauth_1",
		AmountCents: 6000, MerchantName: "Roll-Off Co", Approved: true,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	_, err := h.svc.UpdateLimit(ctx, seeded.Group.ID, creator, 5000)
	expectCode(t, err, pkgerrors.CodeValidation)

	updated, err := h.svc.UpdateLimit(ctx, seeded.Group.ID, creator, 8000)
	if err != nil {
		t.Fatalf("update limit: %v", err)
	}
	if updated.SpendingLimitCents != 8000 || updated.RemainingCents != 2000 {
		t.Fatalf("unexpected instrument %+v", updated)
	}

	if err := h.svc.SyncLimit(ctx, seeded.Group.ID, 8000); err != nil {
		t.Fatalf("sync same limit: %v", err)
	}
	if len(h.gateway.limits) != 1 {
		t.Fatalf("unchanged limit must not call the gateway")
	}
	if err := h.svc.SyncLimit(ctx, uuid.New(), 8000); err != nil {
		t.Fatalf("sync without instrument should be a no-op: %v", err)
	}
}

func TestTransactionsSyncAndPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded, creator := h.issued(t, 50000)
	base := time.Date(2026, time.December, 1, 9, 0, 0, 0, time.UTC)
	h.gateway.authz = []stripe.Authorization{
		{ID: "iauth_3", AmountCents: 3000, MerchantName: "Hauler", Approved: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "iauth_2", AmountCents: 9000, MerchantName: "Hauler", Approved: false, CreatedAt: base.Add(time.Hour)},
		{ID: "iauth_1", AmountCents: 1000, MerchantName: "Permit Office", Approved: true, CreatedAt: base},
	}

	log, err := h.svc.Transactions(ctx, seeded.Group.ID, creator)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if log.Stale {
		t.Fatalf("log should be fresh")
	}
	if log.Instrument.SpentCents != 4000 || log.Instrument.RemainingCents != 46000 {
		t.Fatalf("unexpected totals %+v", log.Instrument)
	}

	page, err := log.Page(ctx, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].GatewayTransactionID != "iauth_3" || page.NextCursor == "" {
		t.Fatalf("unexpected first page %+v", page)
	}
	next, err := log.Page(ctx, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("next page: %v", err)
	}
	if len(next.Items) != 1 || next.Items[0].GatewayTransactionID != "iauth_1" || next.NextCursor != "" {
		t.Fatalf("unexpected second page %+v", next)
	}

	var ids []string
	for item, err := range log.All(ctx) {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		ids = append(ids, item.GatewayTransactionID)
	}
	if len(ids) != 3 || ids[0] != "iauth_3" || ids[2] != "iauth_1" {
		t.Fatalf("unexpected iteration order %v", ids)
	}

	h.gateway.authz = append([]stripe.Authorization{
		{ID: "iauth_4", AmountCents: 500, MerchantName: "Dump fee", Approved: true, CreatedAt: base.Add(3 * time.Hour)},
	}, h.gateway.authz...)
	log, err = h.svc.Transactions(ctx, seeded.Group.ID, creator)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if log.Instrument.SpentCents != 4500 {
		t.Fatalf("spent %d", log.Instrument.SpentCents)
	}

	_, err = log.Page(ctx, pagination.Params{Cursor: "%%%"})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestTransactionsDegradeWhenGatewayFails(t *testing.T) {
	h := newHarness(t)
	seeded, creator := h.issued(t, 50000)
	h.gateway.authzErr = pkgerrors.New(pkgerrors.CodeGatewayTimeout, "timed out")

	log, err := h.svc.Transactions(context.Background(), seeded.Group.ID, creator)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if !log.Stale {
		t.Fatalf("expected stale log")
	}
}

func TestReveal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded, creator := h.issued(t, 50000)

	_, err := h.svc.Reveal(ctx, seeded.Group.ID, creator, "")
	expectCode(t, err, pkgerrors.CodeValidation)

	h.gate.err = pkgerrors.New(pkgerrors.CodeVerificationRequired, "card access verification required")
	_, err = h.svc.Reveal(ctx, seeded.Group.ID, creator, "nonce_1")
	expectCode(t, err, pkgerrors.CodeVerificationRequired)
	if h.gateway.revealCalls != 0 {
		t.Fatalf("gateway must not be called without a verified gate")
	}

	h.gate.err = nil
	out, err := h.svc.Reveal(ctx, seeded.Group.ID, creator, "nonce_1")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if out.EphemeralKeySecret == "" || out.CardID == "" || h.gate.revealed != 1 {
		t.Fatalf("unexpected reveal %+v", out)
	}

	if _, err := h.svc.Freeze(ctx, seeded.Group.ID, creator); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	_, err = h.svc.Reveal(ctx, seeded.Group.ID, creator, "nonce_2")
	expectCode(t, err, pkgerrors.CodeInstrumentInactive)
}

func TestGatewayPushes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded, creator := h.issued(t, 50000)
	card, _ := h.svc.repo.FindByGroup(ctx, nil, seeded.Group.ID)

	err := h.svc.RecordGatewayTransaction(ctx, GatewayTransaction{GatewayCardID: "ic_unknown", GatewayTransactionID: "iauth_x"})
	expectCode(t, err, pkgerrors.CodeInstrumentNotFound)

	pending := GatewayTransaction{
		GatewayCardID: card.GatewayInstrumentID, GatewayTransactionID: "iauth_9",
		AmountCents: 7000, MerchantName: "Hauler", Approved: false,
	}
	if err := h.svc.RecordGatewayTransaction(ctx, pending); err != nil {
		t.Fatalf("record: %v", err)
	}
	pending.Approved = true
	if err := h.svc.RecordGatewayTransaction(ctx, pending); err != nil {
		t.Fatalf("record update: %v", err)
	}
	got, _ := h.svc.Get(ctx, seeded.Group.ID, creator)
	if got.SpentCents != 7000 {
		t.Fatalf("spent %d", got.SpentCents)
	}

	if err := h.svc.SyncStatus(ctx, card.GatewayInstrumentID, "inactive"); err != nil {
		t.Fatalf("sync status: %v", err)
	}
	got, _ = h.svc.Get(ctx, seeded.Group.ID, creator)
	if got.Status != enums.InstrumentFrozen {
		t.Fatalf("status %s", got.Status)
	}
	expectCode(t, h.svc.SyncStatus(ctx, "ic_unknown", "active"), pkgerrors.CodeInstrumentNotFound)
}

func TestStatusFromGateway(t *testing.T) {
	cases := map[string]enums.InstrumentStatus{
		"active":   enums.InstrumentActive,
		"ACTIVE ":  enums.InstrumentActive,
		"inactive": enums.InstrumentFrozen,
		"canceled": enums.InstrumentFrozen,
		"":         enums.InstrumentPending,
	}
	for in, want := range cases {
		if got := statusFromGateway(in); got != want {
			t.Fatalf("statusFromGateway(%q) = %s, want %s", in, got, want)
		}
	}
}
