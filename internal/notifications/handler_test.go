package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/sendgrid"
)

type fakeMailer struct {
	sent   []sendgrid.Message
	status int
	err    error
}

func (f *fakeMailer) Send(_ context.Context, msg sendgrid.Message) (int, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return f.status, f.err
	}
	return 202, nil
}

type fakeInvitees struct {
	marked []uuid.UUID
	err    error
}

func (f *fakeInvitees) MarkInvitationSent(_ context.Context, id uuid.UUID) error {
	f.marked = append(f.marked, id)
	return f.err
}

func newTestHandler(t *testing.T, mailer *fakeMailer, invitees *fakeInvitees) (*Handler, *Repository) {
	t.Helper()
	repo := NewRepository(repotest.Open(t).DB())
	h, err := NewHandler(HandlerParams{
		Mailer:     mailer,
		Deliveries: repo,
		Invitees:   invitees,
		AppBaseURL: "https://app.example.test/",
	})
	require.NoError(t, err)
	return h, repo
}

func invitationPayload(t *testing.T) (payloads.InvitationCreatedEvent, json.RawMessage) {
	t.Helper()
	evt := payloads.InvitationCreatedEvent{
		GroupID:         uuid.New(),
		GroupName:       "Maple St cleanup",
		Address:         "12 Maple St",
		CreatorName:     "Dana",
		MaxParticipants: 4,
		InviteeID:       uuid.New(),
		InviteeName:     "Sam",
		InviteeEmail:    "sam@example.test",
		JoinToken:       "tok_abc",
		TimeSlots: []payloads.SlotWindow{
			{TimeSlotID: uuid.New(), StartDate: "2026-11-02", EndDate: "2026-11-08"},
		},
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return evt, raw
}

func TestHandleInvitationSendsAndMarks(t *testing.T) {
	mailer := &fakeMailer{}
	invitees := &fakeInvitees{}
	h, repo := newTestHandler(t, mailer, invitees)
	evt, raw := invitationPayload(t)
	eventID := uuid.New()

	require.NoError(t, h.Handle(context.Background(), enums.EventInvitationCreated, 1, eventID, raw))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Equal(t, "sam@example.test", msg.ToEmail)
	require.Contains(t, msg.PlainText, "https://app.example.test/join/tok_abc")
	require.Contains(t, msg.HTML, "2026-11-02 to 2026-11-08")
	require.Equal(t, []uuid.UUID{evt.InviteeID}, invitees.marked)

	rows, err := repo.ListDeliveries(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.NotificationSent, rows[0].Status)
	require.Equal(t, 202, rows[0].ProviderStatus)
	require.Equal(t, enums.NotificationInvitation, rows[0].Kind)
}

func TestHandleSendFailureIsRecordedAndReturned(t *testing.T) {
	mailer := &fakeMailer{status: 503, err: errors.New("upstream down")}
	invitees := &fakeInvitees{}
	h, repo := newTestHandler(t, mailer, invitees)
	_, raw := invitationPayload(t)
	eventID := uuid.New()

	err := h.Handle(context.Background(), enums.EventInvitationCreated, 1, eventID, raw)
	require.Error(t, err)
	require.Contains(t, err.Error(), "upstream down")
	require.Empty(t, invitees.marked)

	rows, err := repo.ListDeliveries(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.NotificationFailed, rows[0].Status)
	require.NotNil(t, rows[0].Error)
	require.Equal(t, 503, rows[0].ProviderStatus)
}

func TestHandleMarkFailureDoesNotRetry(t *testing.T) {
	mailer := &fakeMailer{}
	invitees := &fakeInvitees{err: errors.New("db gone")}
	h, _ := newTestHandler(t, mailer, invitees)
	_, raw := invitationPayload(t)

	require.NoError(t, h.Handle(context.Background(), enums.EventInvitationCreated, 1, uuid.New(), raw))
	require.Len(t, mailer.sent, 1)
}

func TestHandlePaymentRequest(t *testing.T) {
	mailer := &fakeMailer{}
	h, _ := newTestHandler(t, mailer, &fakeInvitees{})
	evt := payloads.PaymentRequestCreatedEvent{
		RequestID:     uuid.New(),
		GroupName:     "Maple St cleanup",
		CreatorName:   "Dana",
		PayerName:     "Sam",
		PayerEmail:    "sam@example.test",
		AmountCents:   14333,
		Currency:      "USD",
		Method:        enums.PaymentMethodVenmo,
		MethodDetails: json.RawMessage(`{"username":"dana-d"}`),
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), enums.EventPaymentRequestCreated, 1, uuid.New(), raw))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Contains(t, msg.Subject, "143.33 USD")
	require.Contains(t, msg.PlainText, "Venmo to @dana-d")
	require.Contains(t, msg.PlainText, "the dumpster rental")
}

func TestHandleRejectsUnknownVersionAndType(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailer{}, &fakeInvitees{})
	_, raw := invitationPayload(t)

	err := h.Handle(context.Background(), enums.EventInvitationCreated, 2, uuid.New(), raw)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "decoder not registered"))

	err = h.Handle(context.Background(), enums.EventMemberJoined, 1, uuid.New(), raw)
	require.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestPaymentInstructions(t *testing.T) {
	cases := []struct {
		method  enums.PaymentMethodType
		details string
		want    string
	}{
		{enums.PaymentMethodZelle, `{"email":"dana@example.test"}`, "Zelle to dana@example.test"},
		{enums.PaymentMethodZelle, `{"phone":"+15550100"}`, "Zelle to +15550100"},
		{enums.PaymentMethodCash, ``, "Pay Dana in cash"},
		{enums.PaymentMethodCard, ``, "saved card"},
	}
	for _, tc := range cases {
		got := paymentInstructions(tc.method, json.RawMessage(tc.details), "Dana")
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%s: got %q want substring %q", tc.method, got, tc.want)
		}
	}
}

func TestJoinURLEscapesToken(t *testing.T) {
	if got := joinURL("https://a.test", "a/b"); got != "https://a.test/join/a%2Fb" {
		t.Fatalf("unexpected url %s", got)
	}
}
