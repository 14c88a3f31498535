package ws

import (
	"sync"

	"github.com/samber/lo"
)

// Transport is one live connection the registry can push envelopes to.
// Send is never called concurrently for the same transport.
type Transport interface {
	Send(v any) error
	Close() error
	ID() string
}

// Observer is notified of binding and delivery events. Calls for a given
// user are made while that user's slot is held, so they arrive in order.
// A replacement is reported as Unbound for the old connection followed by
// Bound with replaced set.
type Observer interface {
	Bound(userID int64, connID string, replaced bool)
	Unbound(userID int64, connID string)
	Delivered(userID int64)
	Undelivered(userID int64, reason string)
}

// Undelivered reasons.
const (
	ReasonOffline    = "offline"
	ReasonSendFailed = "send_failed"
)

type slot struct {
	mu        sync.Mutex
	transport Transport
}

// Registry maps a user id to at most one live transport. Operations on the
// same user are serialized by a per-user slot; different users never
// contend beyond the brief map lookup.
type Registry struct {
	mu        sync.RWMutex
	slots     map[int64]*slot
	observers []Observer
}

func NewRegistry(observers ...Observer) *Registry {
	return &Registry{
		slots:     make(map[int64]*slot),
		observers: lo.Filter(observers, func(o Observer, _ int) bool { return o != nil }),
	}
}

// slot returns the slot of userID, creating it on first use. Slots are
// never removed so a slot pointer stays valid for the process lifetime.
func (r *Registry) slot(userID int64) *slot {
	r.mu.RLock()
	s, ok := r.slots[userID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.slots[userID]; !ok {
		s = &slot{}
		r.slots[userID] = s
	}
	return s
}

// Bind records t as the transport of userID, closing any previous one.
func (r *Registry) Bind(userID int64, t Transport) {
	s := r.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.transport
	if old == t {
		return
	}
	if old != nil {
		_ = old.Close()
		r.notify(func(o Observer) { o.Unbound(userID, old.ID()) })
	}
	s.transport = t
	r.notify(func(o Observer) { o.Bound(userID, t.ID(), old != nil) })
}

// Unbind removes and closes the transport of userID, if any.
func (r *Registry) Unbind(userID int64) {
	s := r.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	r.unbindLocked(userID, s)
}

// Release unbinds userID only while t is still its bound transport. A
// connection worker calls it on exit so it never removes its replacement.
func (r *Registry) Release(userID int64, t Transport) bool {
	s := r.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != t {
		return false
	}
	r.unbindLocked(userID, s)
	return true
}

func (r *Registry) unbindLocked(userID int64, s *slot) {
	t := s.transport
	if t == nil {
		return
	}
	s.transport = nil
	_ = t.Close()
	r.notify(func(o Observer) { o.Unbound(userID, t.ID()) })
}

// Deliver sends v to the transport bound to userID. A send failure unbinds
// the user. It reports whether the envelope was handed to a transport.
func (r *Registry) Deliver(userID int64, v any) bool {
	s := r.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		r.notify(func(o Observer) { o.Undelivered(userID, ReasonOffline) })
		return false
	}
	if err := s.transport.Send(v); err != nil {
		r.unbindLocked(userID, s)
		r.notify(func(o Observer) { o.Undelivered(userID, ReasonSendFailed) })
		return false
	}
	r.notify(func(o Observer) { o.Delivered(userID) })
	return true
}

func (r *Registry) Online(userID int64) bool {
	r.mu.RLock()
	s, ok := r.slots[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil
}

// OnlineIDs returns the ids that currently have a bound transport.
func (r *Registry) OnlineIDs() []int64 {
	r.mu.RLock()
	ids := lo.Keys(r.slots)
	r.mu.RUnlock()
	return lo.Filter(ids, func(id int64, _ int) bool { return r.Online(id) })
}

func (r *Registry) Count() int {
	return len(r.OnlineIDs())
}

// CloseAll unbinds every user. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := lo.Keys(r.slots)
	r.mu.RUnlock()
	for _, id := range ids {
		r.Unbind(id)
	}
}

func (r *Registry) notify(fn func(Observer)) {
	for _, o := range r.observers {
		fn(o)
	}
}
