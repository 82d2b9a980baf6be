package local

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/courier"
	"github.com/user/courier/pkg/filestorage"
)

// HandlePrefix starts every handle issued by a HandleStore.
const HandlePrefix = "blob:courier/"

// HandleStore keeps references to retained files, like a browser's object URL table.
type HandleStore struct {
	mu      sync.RWMutex
	handles map[string]courier.Blob
}

func NewHandleStore() *HandleStore {
	return &HandleStore{handles: make(map[string]courier.Blob)}
}

// Put retains b and returns a new handle for it.
func (s *HandleStore) Put(b courier.Blob) string {
	handle := HandlePrefix + uuid.New().String()
	s.mu.Lock()
	s.handles[handle] = b
	s.mu.Unlock()
	return handle
}

// Resolve returns the blob behind handle.
func (s *HandleStore) Resolve(handle string) (courier.Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.handles[handle]
	return b, ok
}

// Revoke releases handle.
func (s *HandleStore) Revoke(handle string) {
	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

// Channel never touches the network. It keeps the file reachable for the user
// and always succeeds, which the orchestrator reports as a soft success.
// Handles it issued stay resolvable until Close revokes them.
type Channel struct {
	store  *HandleStore
	mirror filestorage.Storage
	prefix string
	logger courier.Logger

	mu     sync.Mutex
	issued []string
}

// NewObjectURLChannel creates the channel. mirror may be nil; when set, the file is
// also copied there and the mirrored URL is used as the locator.
func NewObjectURLChannel(store *HandleStore, mirror filestorage.Storage, prefix string) *Channel {
	if store == nil {
		store = NewHandleStore()
	}
	return &Channel{store: store, mirror: mirror, prefix: strings.Trim(prefix, "/")}
}

func (c *Channel) SetLogger(logger courier.Logger) {
	c.logger = logger
}

func (c *Channel) Store() *HandleStore {
	return c.store
}

func (c *Channel) Delivery() courier.Delivery {
	return courier.DeliveryLocal
}

// Close revokes every handle this channel issued. The store may be shared,
// so handles from other channels are left alone.
func (c *Channel) Close() error {
	c.mu.Lock()
	issued := c.issued
	c.issued = nil
	c.mu.Unlock()

	for _, h := range issued {
		c.store.Revoke(h)
	}
	return nil
}

func (c *Channel) Attempt(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	if c.mirror != nil {
		u, err := c.mirrorFile(ctx, p)
		if err == nil {
			return courier.Succeeded(u)
		}
		if c.logger != nil {
			c.logger.Warn("Failed to mirror retained file, keeping in-memory handle", "submission_id", p.ID(), "error", err)
		}
	}
	return courier.Succeeded(c.retain(p.File()))
}

func (c *Channel) retain(b courier.Blob) string {
	handle := c.store.Put(b)
	c.mu.Lock()
	c.issued = append(c.issued, handle)
	c.mu.Unlock()
	return handle
}

func (c *Channel) mirrorFile(ctx context.Context, p *courier.Payload) (string, error) {
	file := p.File()
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	key := path.Join(c.prefix, p.ID(), path.Base(file.Name()))
	return c.mirror.Put(ctx, key, rc, filestorage.PutOptions{
		ContentType: file.ContentType(),
		Size:        file.Size(),
	})
}
