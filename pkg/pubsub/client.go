// Package pubsub wraps the Pub/Sub v2 client with the topic and subscription
// names from config. Each binary states which resources it depends on and
// the client verifies them at start-up and on every readiness ping.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

// Requirement names a resource a binary cannot run without.
type Requirement int

const (
	// NeedsNotificationSubscription is the notification worker's input.
	NeedsNotificationSubscription Requirement = iota
	// NeedsTopics covers every topic the outbox publisher routes to.
	NeedsTopics
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	needs     []Requirement
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, needs ...Requirement) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	raw, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: projectID, cfg: cfg, needs: needs}
	if err := c.verify(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", projectID), "pubsub client initialized")
	}
	return c, nil
}

// Ping re-checks the resources requested at construction.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Subscriber returns a handle for a subscription ID or full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := resourceName(c.projectID, "subscriptions", name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// NotificationSubscription is the subscriber the notification worker drains.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscriber(c.cfg.NotificationSubscription)
}

// Publisher returns a handle for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := resourceName(c.projectID, "topics", name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) verify(ctx context.Context) error {
	for _, need := range c.needs {
		switch need {
		case NeedsNotificationSubscription:
			name := strings.TrimSpace(c.cfg.NotificationSubscription)
			if name == "" {
				return errors.New("pubsub subscription name is required")
			}
			_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
				Subscription: resourceName(c.projectID, "subscriptions", name),
			})
			if err := describe("subscription", name, err); err != nil {
				return err
			}
		case NeedsTopics:
			for _, name := range topicNames(c.cfg) {
				_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
					Topic: resourceName(c.projectID, "topics", name),
				})
				if err := describe("topic", name, err); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.NotificationTopic, cfg.GroupTopic} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// resourceName expands a bare ID to projects/<project>/<collection>/<id>.
// Names that are already fully qualified pass through.
func resourceName(projectID, collection, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	if projectID = strings.TrimSpace(projectID); projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + collection + "/" + name
}
