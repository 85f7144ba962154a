package sendgrid

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

type stubSender struct {
	resp *rest.Response
	err  error
	sent []*mail.SGMailV3
}

func (s *stubSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.sent = append(s.sent, email)
	return s.resp, s.err
}

func testConfig() config.SendgridConfig {
	return config.SendgridConfig{DefaultFrom: "no-reply@dumpsterpool.app", FromName: "DumpsterPool"}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.SendgridConfig{DefaultFrom: "a@b.c"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)
}

func TestSendBuildsSingleEmail(t *testing.T) {
	stub := &stubSender{resp: &rest.Response{StatusCode: 202}}
	client, err := newClient(stub, testConfig(), nil)
	require.NoError(t, err)

	status, err := client.Send(context.Background(), Message{
		ToEmail:   "bob@example.com",
		ToName:    "Bob",
		Subject:   "You're invited",
		PlainText: "join",
		HTML:      "<p>join</p>",
	})
	require.NoError(t, err)
	require.Equal(t, 202, status)
	require.Len(t, stub.sent, 1)
	require.Equal(t, "no-reply@dumpsterpool.app", stub.sent[0].From.Address)
	require.Equal(t, "You're invited", stub.sent[0].Subject)
	require.Equal(t, "bob@example.com", stub.sent[0].Personalizations[0].To[0].Address)
}

func TestSendMapsProviderFailures(t *testing.T) {
	rejected := &stubSender{resp: &rest.Response{StatusCode: 400}}
	client, err := newClient(rejected, testConfig(), nil)
	require.NoError(t, err)
	status, err := client.Send(context.Background(), Message{ToEmail: "bob@example.com"})
	require.Equal(t, 400, status)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayError))

	timedOut := &stubSender{err: context.DeadlineExceeded}
	client, err = newClient(timedOut, testConfig(), nil)
	require.NoError(t, err)
	_, err = client.Send(context.Background(), Message{ToEmail: "bob@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayTimeout))

	_, err = client.Send(context.Background(), Message{})
	require.True(t, errors.Is(err, errRecipientRequired))
}
