package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// Consumer receives waited data, transformed when it is a container.
type Consumer func(data any)

type wait struct {
	data      any
	provided  bool
	consumers []Consumer
}

// Store holds the data, request and wait namespaces of a runtime.
type Store struct {
	owner  *reactive.Owner
	logger *slog.Logger

	mu       sync.Mutex
	data     map[string]any
	requests map[string]any
	waits    map[string]*wait
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store. Reactive values are transformed under owner;
// a nil owner uses reactive.DefaultOwner.
func New(owner *reactive.Owner, opts ...Option) *Store {
	if owner == nil {
		owner = reactive.DefaultOwner()
	}
	s := &Store{
		owner:    owner,
		logger:   slog.Default(),
		data:     make(map[string]any),
		requests: make(map[string]any),
		waits:    make(map[string]*wait),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	return s
}

// Set stores data under key. An existing key is kept and reported as an error.
// With makeReactive the data is transformed first.
func (s *Store) Set(key string, data any, makeReactive bool) error {
	s.mu.Lock()
	if _, exists := s.data[key]; exists {
		s.mu.Unlock()
		err := errors.New(errors.CodeStoreKeyExists).WithDetail(fmt.Sprintf("key %q", key))
		s.logger.Info("data already stored", "key", key, "error", err)
		return err
	}
	s.mu.Unlock()

	if makeReactive {
		transformed, err := s.owner.Transform(data)
		if err != nil {
			return err
		}
		data = transformed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return errors.New(errors.CodeStoreKeyExists).WithDetail(fmt.Sprintf("key %q", key))
	}
	s.data[key] = data
	return nil
}

// Get returns the data stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Unset removes the data under key and reports whether it existed.
func (s *Store) Unset(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

// Keys returns the data keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetRequest records the latest payload for key, replacing any previous one.
func (s *Store) SetRequest(key string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[key] = payload
}

// Request returns the payload recorded for key.
func (s *Store) Request(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.requests[key]
	return v, ok
}

// UnsetRequest removes the payload for key and reports whether it existed.
func (s *Store) UnsetRequest(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requests[key]
	delete(s.requests, key)
	return ok
}

// Wait registers consumer for key. If data was already provided the consumer
// runs immediately.
func (s *Store) Wait(key string, consumer Consumer) {
	s.mu.Lock()
	w, ok := s.waits[key]
	if !ok {
		w = &wait{}
		s.waits[key] = w
	}
	w.consumers = append(w.consumers, consumer)
	provided, data := w.provided, w.data
	s.mu.Unlock()

	if provided {
		s.deliver(key, consumer, data)
	}
}

// Provide stores data for key and delivers it to every waiting consumer.
// With once the wait entry is removed after delivery, so later consumers wait
// for the next Provide.
func (s *Store) Provide(key string, data any, once bool) {
	if out, err := s.owner.Transform(data); err == nil {
		data = out
	}

	s.mu.Lock()
	w, ok := s.waits[key]
	if !ok {
		w = &wait{}
		s.waits[key] = w
	}
	w.data = data
	w.provided = true
	consumers := make([]Consumer, len(w.consumers))
	copy(consumers, w.consumers)
	if once {
		delete(s.waits, key)
	}
	s.mu.Unlock()

	for _, c := range consumers {
		s.deliver(key, c, data)
	}
}

// Waited returns the data provided for key. Data provided with once is never
// retained, so only a Provide without once can be read back.
func (s *Store) Waited(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waits[key]
	if !ok || !w.provided {
		return nil, false
	}
	return w.data, true
}

// UnsetWait removes the wait entry for key and its consumers.
func (s *Store) UnsetWait(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.waits[key]
	delete(s.waits, key)
	return ok
}

// Waiting returns the number of consumers registered for key.
func (s *Store) Waiting(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.waits[key]; ok {
		return len(w.consumers)
	}
	return 0
}

func (s *Store) deliver(key string, c Consumer, data any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("wait consumer panicked",
				"code", errors.CodeCallbackPanic,
				"key", key,
				"error", fmt.Sprint(r))
		}
	}()
	c(data)
}
