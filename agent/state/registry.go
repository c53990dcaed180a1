package state

import (
	"sync"
	"time"
)

// Registry is the process-wide keyed store of conversation state: one
// entry per conversation identity, created on first contact and evicted
// on CLOSED or inactivity. Access to one conversation is serialized
// through a per-entry lock so at most one turn is in flight per
// identity; different conversations never contend.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	conv *Conversation
}

// Handle is a locked view of one conversation. Release must be called
// exactly once; Commit replaces the stored state before release.
type Handle struct {
	reg *Registry
	ent *entry
	id  string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire locks the conversation entry, creating it on first contact.
// It blocks while a prior turn for the same identity is in flight.
func (r *Registry) Acquire(id string, now time.Time) *Handle {
	r.mu.Lock()
	ent, ok := r.entries[id]
	if !ok {
		ent = &entry{conv: NewConversation(id, now)}
		r.entries[id] = ent
	}
	r.mu.Unlock()

	ent.mu.Lock()
	return &Handle{reg: r, ent: ent, id: id}
}

// Snapshot returns a working copy; mutations are invisible until Commit.
func (h *Handle) Snapshot() *Conversation {
	return h.ent.conv.Clone()
}

func (h *Handle) Commit(conv *Conversation) {
	if conv != nil {
		h.ent.conv = conv
	}
}

func (h *Handle) Release() {
	h.ent.mu.Unlock()
}

// Evict removes a conversation entry. The caller must not hold the
// entry's handle for a different identity.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Stale lists conversation identities whose last activity is older than
// cutoff, skipping terminal and settled (BOOKED) conversations. Used by
// the periodic sweep; cost is O(active conversations).
func (r *Registry) Stale(cutoff time.Time) []string {
	r.mu.Lock()
	snapshot := make(map[string]*entry, len(r.entries))
	for id, ent := range r.entries {
		snapshot[id] = ent
	}
	r.mu.Unlock()

	var ids []string
	for id, ent := range snapshot {
		ent.mu.Lock()
		conv := ent.conv
		stale := !conv.Status.Terminal() &&
			conv.Status != StatusBooked &&
			conv.LastActivityAt.Before(cutoff)
		ent.mu.Unlock()
		if stale {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
