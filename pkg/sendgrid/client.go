package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

var (
	errAPIKeyRequired    = errors.New("sendgrid api key is required")
	errFromRequired      = errors.New("sendgrid from address is required")
	errRecipientRequired = errors.New("sendgrid recipient is required")
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Message is a single transactional email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Client delivers transactional email through SendGrid.
type Client struct {
	api      sender
	fromAddr string
	fromName string
	logger   *logger.Logger
}

// NewClient builds a SendGrid-backed mailer.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	return newClient(sg.NewSendClient(key), cfg, logg)
}

func newClient(api sender, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}
	return &Client{
		api:      api,
		fromAddr: from,
		fromName: strings.TrimSpace(cfg.FromName),
		logger:   logg,
	}, nil
}

// Send delivers msg and returns the provider status code.
func (c *Client) Send(ctx context.Context, msg Message) (int, error) {
	to := strings.TrimSpace(msg.ToEmail)
	if to == "" {
		return 0, errRecipientRequired
	}
	email := mail.NewSingleEmail(
		mail.NewEmail(c.fromName, c.fromAddr),
		msg.Subject,
		mail.NewEmail(msg.ToName, to),
		msg.PlainText,
		msg.HTML,
	)

	resp, err := c.api.SendWithContext(ctx, email)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, "sendgrid send timed out")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "sendgrid send failed")
	}
	if resp == nil {
		return 0, pkgerrors.New(pkgerrors.CodeGatewayError, "sendgrid returned no response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, pkgerrors.New(pkgerrors.CodeGatewayError, fmt.Sprintf("sendgrid rejected email with status %d", resp.StatusCode))
	}
	if c.logger != nil {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"provider_status": resp.StatusCode,
			"subject":         msg.Subject,
		})
		c.logger.Info(logCtx, "email delivered to sendgrid")
	}
	return resp.StatusCode, nil
}
