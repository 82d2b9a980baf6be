package objectstore

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/courier"
	"github.com/user/courier/pkg/blob"
	"github.com/user/courier/pkg/filestorage"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	err     error
}

func (m *memStorage) Put(ctx context.Context, key string, r io.Reader, opts filestorage.PutOptions) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.meta[key] = opts.Metadata
	return m.URL(key), nil
}

func (m *memStorage) URL(key string) string                        { return "s3://bucket/" + key }
func (m *memStorage) Delete(ctx context.Context, key string) error { return nil }
func (m *memStorage) Type() string                                 { return "mem" }

func TestChannel_Put(t *testing.T) {
	store := &memStorage{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	ch := NewObjectStoreChannel(store, "/submissions/")

	p, err := courier.Build(courier.Fields{Username: "alice", Email: "a@example.com"}, blob.FromBytes("x.csv", []byte("1,2")))
	require.NoError(t, err)

	out := ch.Attempt(context.Background(), p, time.Second)
	require.True(t, out.Success, out.Message)

	key := "submissions/" + p.ID() + "/x.csv"
	assert.Equal(t, "s3://bucket/"+key, out.Locator)
	assert.Equal(t, "1,2", string(store.objects[key]))
	assert.Equal(t, "a@example.com", store.meta[key]["email"])
	assert.Equal(t, courier.DeliveryRemote, ch.Delivery())
}

func TestChannel_PutFailure(t *testing.T) {
	ch := NewObjectStoreChannel(&memStorage{err: errors.New("connection refused")}, "")
	p, err := courier.Build(courier.Fields{}, blob.FromBytes("x.csv", []byte("1,2")))
	require.NoError(t, err)

	out := ch.Attempt(context.Background(), p, time.Second)
	require.False(t, out.Success)
	assert.Equal(t, courier.FailureNetworkUnreachable, out.Kind)

	out = NewObjectStoreChannel(nil, "").Attempt(context.Background(), p, time.Second)
	assert.Equal(t, courier.FailureUnsupported, out.Kind)
}
