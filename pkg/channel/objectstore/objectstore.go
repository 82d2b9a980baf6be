package objectstore

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/user/courier"
	"github.com/user/courier/pkg/filestorage"
)

// Channel puts the file straight into object storage, bypassing the collection server.
type Channel struct {
	storage filestorage.Storage
	prefix  string
	logger  courier.Logger
}

func NewObjectStoreChannel(storage filestorage.Storage, prefix string) *Channel {
	return &Channel{storage: storage, prefix: strings.Trim(prefix, "/")}
}

func (c *Channel) SetLogger(logger courier.Logger) {
	c.logger = logger
}

func (c *Channel) Delivery() courier.Delivery {
	return courier.DeliveryRemote
}

func (c *Channel) Close() error {
	return nil
}

func (c *Channel) Attempt(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	if c.storage == nil {
		return courier.Failed(courier.FailureUnsupported, "no object storage configured")
	}
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	file := p.File()
	rc, err := file.Open()
	if err != nil {
		return courier.Failed(courier.FailureUnsupported, "failed to open file: %v", err)
	}
	defer rc.Close()

	f := p.Fields()
	key := path.Join(c.prefix, p.ID(), path.Base(file.Name()))
	u, err := c.storage.Put(ctx, key, rc, filestorage.PutOptions{
		ContentType: file.ContentType(),
		Size:        file.Size(),
		Metadata: map[string]string{
			"username":   f.Username,
			"email":      f.Email,
			"phone-code": f.PhoneCountryCode,
			"phone":      f.PhoneNumber,
		},
	})
	if err != nil {
		var re *awshttp.ResponseError
		if errors.As(err, &re) {
			return courier.Rejected(re.HTTPStatusCode(), re.Error())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return courier.FailureFromError(ctxErr)
		}
		return courier.FailureFromError(err)
	}
	return courier.Succeeded(u)
}
