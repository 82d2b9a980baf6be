package proxy

import (
	"context"
	"time"

	"github.com/user/courier"
	chanhttp "github.com/user/courier/pkg/channel/http"
)

// Kind distinguishes the two proxy deployments. Both forward the multipart body unchanged.
type Kind string

const (
	// KindLocal is a same-origin reverse proxy in front of the collection server.
	KindLocal Kind = "local_proxy"
	// KindFunction is a serverless function that re-posts the body to the collection server.
	KindFunction Kind = "function_proxy"
)

// Channel posts the payload to a proxy that routes around cross-origin restrictions.
type Channel struct {
	*chanhttp.Sender
	kind Kind
}

func NewLocalProxyChannel(opts chanhttp.Options) *Channel {
	return &Channel{Sender: chanhttp.NewSender(opts), kind: KindLocal}
}

func NewFunctionProxyChannel(opts chanhttp.Options) *Channel {
	return &Channel{Sender: chanhttp.NewSender(opts), kind: KindFunction}
}

func (c *Channel) Kind() Kind {
	return c.kind
}

func (c *Channel) Attempt(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	return c.Send(ctx, p, timeout)
}

func (c *Channel) Delivery() courier.Delivery {
	return courier.DeliveryRemote
}
