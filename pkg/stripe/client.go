package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultCurrency = "usd"
	defaultTimeout  = 10 * time.Second
)

var (
	errAPIKeyRequired       = errors.New("stripe api key is required")
	errSecretRequired       = errors.New("stripe webhook secret is required")
	errCardholderRequired   = errors.New("stripe issuing cardholder id is required")
	errInvalidStripeEnv     = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errCardIDRequired       = errors.New("stripe card id is required")
	errSpendingLimitInvalid = errors.New("stripe spending limit must be positive")
)

// Client wraps the Stripe Issuing surface used for group disbursement cards.
type Client struct {
	environment       string
	signingSecret     string
	cardholderID      string
	currency          string
	allowedCategories []string
	apiVersion        string
	timeout           time.Duration
	logger            *logger.Logger
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	cardholderID := strings.TrimSpace(cfg.CardholderID)
	if cardholderID == "" {
		return nil, errCardholderRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe issuing client initialized (%s)", env))
	}

	return &Client{
		environment:       env,
		signingSecret:     signingSecret,
		cardholderID:      cardholderID,
		currency:          currency,
		allowedCategories: normalizeCategories(cfg.AllowedMCCs),
		apiVersion:        strings.TrimSpace(cfg.APIVersion),
		timeout:           timeout,
		logger:            logg,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) logCall(ctx context.Context, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithOperation(ctx, "stripe."+op)
	ctx = c.logger.WithFields(ctx, fields)
	c.logger.Info(ctx, "stripe request")
}

func (c *Client) logFailure(ctx context.Context, op string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithOperation(ctx, "stripe."+op)
	c.logger.Error(ctx, "stripe request failed", err)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}

func normalizeCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := map[string]struct{}{}
	for _, value := range raw {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
