package query

import (
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/krisalay/query-cache/refresh"
	"github.com/krisalay/query-cache/types"
)

// registered is the type-erased view of a Store kept by the Client.
type registered interface {
	Name() string
	Len() int
	InvalidateAll() int
	Close()
}

/*
Client is the explicitly constructed, shared entry point of the cache.

It keeps exactly one Store per capability type, so two call sites using the
same capability type share entries, fetches and subscribers. All stores share
one timer scheduler and the options given to NewClient.
*/
type Client struct {
	mu        sync.Mutex
	stores    map[reflect.Type]registered
	opts      []Option
	scheduler *refresh.Scheduler
	logger    *zap.Logger
	closed    bool
}

// NewClient creates a Client. opts are validated once here and applied to
// every store the client creates.
func NewClient(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		stores:    make(map[reflect.Type]registered),
		opts:      opts,
		scheduler: refresh.NewScheduler(),
		logger:    logger,
	}, nil
}

/*
Use returns the Store of capability's type, creating it on first use with the
client options followed by opts. opts are ignored when the store already exists.

Use fails with ErrTypeMismatch when the capability type was first used with
different key or value types, and with ErrClosed after Close.
*/
func Use[K comparable, V any](c *Client, capability types.Capability[K, V], opts ...Option) (*Store[K, V], error) {
	if capability == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil capability")
	}
	t := reflect.TypeOf(capability)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if r, ok := c.stores[t]; ok {
		s, ok := r.(*Store[K, V])
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s is registered as %T", t, r)
		}
		return s, nil
	}

	all := make([]Option, 0, len(c.opts)+len(opts)+1)
	all = append(all, c.opts...)
	all = append(all, opts...)
	all = append(all, withScheduler(c.scheduler))

	s, err := NewStore[K, V](capability, all...)
	if err != nil {
		return nil, errors.Wrapf(err, "create store for %s", t)
	}
	c.stores[t] = s
	c.logger.Info("query store created", zap.String("capability", s.Name()))
	return s, nil
}

// Stores returns the capability names of the registered stores, sorted.
func (c *Client) Stores() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.stores))
	for _, s := range c.stores {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

// InvalidateAll invalidates every entry of every store and returns how many
// entries were touched.
func (c *Client) InvalidateAll() int {
	c.mu.Lock()
	stores := make([]registered, 0, len(c.stores))
	for _, s := range c.stores {
		stores = append(stores, s)
	}
	c.mu.Unlock()

	n := 0
	for _, s := range stores {
		n += s.InvalidateAll()
	}
	return n
}

// Close closes every store and cancels every pending timer.
// Close is safe to call multiple times.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stores := c.stores
	c.mu.Unlock()

	entries := 0
	for _, s := range stores {
		entries += s.Len()
		s.Close()
	}
	c.scheduler.Close()
	c.logger.Info("query client closed", zap.Int("stores", len(stores)), zap.Int("entries", entries))
}
