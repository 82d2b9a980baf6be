package cors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/user/courier"
	chanhttp "github.com/user/courier/pkg/channel/http"
)

// Placeholder in a relay base that is replaced by the query-escaped target URL.
const Placeholder = "{url}"

// Config describes one third-party relay in front of the collection endpoint.
type Config struct {
	// RelayBase is either a prefix ("https://relay.example/") or a template
	// containing Placeholder ("https://relay.example/raw?url={url}").
	RelayBase string
	// Target is the collection endpoint the relay forwards to.
	Target string
	// Origin is sent as the Origin header; some relays refuse requests without one.
	Origin string
	HTTP   chanhttp.Options
}

// Channel posts the payload through a CORS relay.
type Channel struct {
	*chanhttp.Sender
	relay string
}

// RelayURL composes the URL actually posted to.
func RelayURL(base, target string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("relay base is required")
	}
	if target == "" {
		return "", fmt.Errorf("relay target is required")
	}
	if strings.Contains(base, Placeholder) {
		return strings.ReplaceAll(base, Placeholder, url.QueryEscape(target)), nil
	}
	return base + target, nil
}

func NewCorsProxyChannel(cfg Config) (*Channel, error) {
	u, err := RelayURL(cfg.RelayBase, cfg.Target)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(u); err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}

	opts := cfg.HTTP
	opts.URL = u
	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if cfg.Origin != "" {
		headers["Origin"] = cfg.Origin
	}
	opts.Headers = headers

	return &Channel{Sender: chanhttp.NewSender(opts), relay: cfg.RelayBase}, nil
}

// Relay returns the configured relay base.
func (c *Channel) Relay() string {
	return c.relay
}

func (c *Channel) Attempt(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	return c.Send(ctx, p, timeout)
}

func (c *Channel) Delivery() courier.Delivery {
	return courier.DeliveryRemote
}
