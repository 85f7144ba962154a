package square

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

const defaultTimeout = 10 * time.Second

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errLoggerRequired      = errors.New("square logger is required")
)

var hosts = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// Client is the gateway used to vault member cards and collect their shares.
type Client struct {
	sdk        *sqclient.Client
	env        string
	locationID string
	secret     string
	timeout    time.Duration
	logger     *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := cfg.Environment()
	host, ok := hosts[env]
	if !ok {
		return nil, fmt.Errorf("unsupported square environment %q", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		return nil, errLocationRequired
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		sdk:        sqclient.NewClient(sqoption.WithBaseURL(host), sqoption.WithToken(token)),
		env:        env,
		locationID: location,
		secret:     strings.TrimSpace(cfg.WebhookSecret),
		timeout:    timeout,
		logger:     logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// SigningSecret is the key Square signs webhook notifications with.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.secret
}

// idempotencyKey keeps a caller supplied key and otherwise mints "<op>-<uuid>".
func idempotencyKey(op, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	if op = strings.TrimSpace(op); op == "" {
		op = "dp"
	}
	return op + "-" + uuid.NewString()
}

// call runs one SDK request under the client timeout, tracing it before and after.
func (c *Client) call(ctx context.Context, op string, fields map[string]any, do func(context.Context) (map[string]any, error)) error {
	c.trace(ctx, op, "request", fields, nil)

	timeout := c.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := do(callCtx)
	if err != nil {
		c.trace(ctx, op, "error", fields, err)
		return mapError(err, strings.ReplaceAll(op, "_", " "))
	}
	c.trace(ctx, op, "response", result, nil)
	return nil
}

var sensitiveKeys = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) trace(ctx context.Context, op, phase string, fields map[string]any, err error) {
	if c == nil || c.logger == nil {
		return
	}
	safe := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		safe[k] = redact(k, v)
	}
	safe["operation"] = op
	safe["phase"] = phase
	ctx = c.logger.WithFields(ctx, safe)
	if err != nil {
		c.logger.Error(ctx, "square "+op, err)
		return
	}
	c.logger.Debug(ctx, "square "+phase)
}
