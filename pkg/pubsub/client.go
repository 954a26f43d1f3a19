// Package pubsub wraps the Pub/Sub v2 client used to fan change events out
// to other services.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/logger"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub events topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// topicAdmin is the slice of the admin API used to check and create topics.
type topicAdmin interface {
	GetTopic(ctx context.Context, name string) error
	CreateTopic(ctx context.Context, name string) error
}

type Client struct {
	client    *pubsub.Client
	admin     topicAdmin
	projectID string
	cfg       config.PubSubConfig
	logg      *logger.Logger
	events    *pubsub.Publisher
}

// NewClient dials Pub/Sub and makes sure the events topic is usable. With
// CreateTopic set a missing topic is created instead of failing startup.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.EventsTopic) == "" {
		return nil, errNoTopic
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		admin:     grpcAdmin{client: psClient},
		projectID: gcp.ProjectID,
		cfg:       cfg,
		logg:      logg,
	}
	if err := c.prepareTopic(ctx, cfg.EventsTopic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"topic":    c.topicResourceName(cfg.EventsTopic),
			"emulator": cfg.EmulatorHost != "",
		})
		logg.Info(ctx, "pubsub.connected")
	}
	return c, nil
}

// clientOptions targets the emulator when one is configured. Otherwise it
// prefers inline credentials, then a credentials file, then application
// default credentials.
func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		return []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func (c *Client) prepareTopic(ctx context.Context, name string) error {
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}

	err := c.admin.GetTopic(ctx, fullName)
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", name, err)
	case !c.cfg.CreateTopic:
		return fmt.Errorf("topic %q does not exist", name)
	}

	if err := c.admin.CreateTopic(ctx, fullName); err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", name, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "topic", fullName), "pubsub.topic_created")
	}
	return nil
}

// EventsPublisher returns the change-event publisher, built once with the
// configured batching. Messages are ordered per ordering key.
func (c *Client) EventsPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if c.events != nil {
		return c.events
	}
	fullName := c.topicResourceName(c.cfg.EventsTopic)
	if fullName == "" {
		return nil
	}
	pub := c.client.Publisher(fullName)
	applyPublishSettings(&pub.PublishSettings, c.cfg)
	pub.EnableMessageOrdering = true
	c.events = pub
	return pub
}

func applyPublishSettings(settings *pubsub.PublishSettings, cfg config.PubSubConfig) {
	if cfg.BatchDelay > 0 {
		settings.DelayThreshold = cfg.BatchDelay
	}
	if cfg.BatchCount > 0 {
		settings.CountThreshold = cfg.BatchCount
	}
}

// Ping checks the events topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errNotInitialized
	}
	return c.admin.GetTopic(ctx, c.topicResourceName(c.cfg.EventsTopic))
}

// Close flushes the events publisher and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.events != nil {
		c.events.Stop()
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	if c == nil {
		return ""
	}
	return TopicResourceName(c.projectID, name)
}

// TopicResourceName expands a topic ID into projects/<p>/topics/<id>; full
// resource names pass through unchanged.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}

type grpcAdmin struct {
	client *pubsub.Client
}

func (a grpcAdmin) GetTopic(ctx context.Context, name string) error {
	_, err := a.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	return err
}

func (a grpcAdmin) CreateTopic(ctx context.Context, name string) error {
	_, err := a.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	return err
}
