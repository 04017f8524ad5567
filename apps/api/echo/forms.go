package echoapi

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/seta/core/fundingwindow"
)

var (
	newFormID = uuid.NewString // mockable
	formsNow  = time.Now       // mockable
)

type formEntry struct {
	store    *fundingwindow.Store
	ownerID  string
	lastUsed time.Time
}

// formRegistry holds the open form sessions, each owned by the actor that opened it.
type formRegistry struct {
	mu    sync.Mutex
	forms map[string]formEntry
}

func newFormRegistry() *formRegistry {
	return &formRegistry{forms: make(map[string]formEntry)}
}

func (r *formRegistry) open(ownerID string, existing *fundingwindow.FundingWindow, agreementID string) (string, *fundingwindow.Store) {
	id := newFormID()
	store := fundingwindow.NewStore(existing, agreementID)

	r.mu.Lock()
	r.forms[id] = formEntry{store: store, ownerID: ownerID, lastUsed: formsNow()}
	r.mu.Unlock()
	return id, store
}

// get returns the form only to its owner and marks it as used.
func (r *formRegistry) get(id, ownerID string) (*fundingwindow.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.forms[id]
	if !ok || entry.ownerID != ownerID {
		return nil, false
	}
	entry.lastUsed = formsNow()
	r.forms[id] = entry
	return entry.store, true
}

func (r *formRegistry) discard(id, ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.forms[id]
	if !ok || entry.ownerID != ownerID {
		return false
	}
	delete(r.forms, id)
	return true
}

// expire drops the forms last used before `before`; it returns how many were dropped.
func (r *formRegistry) expire(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for id, entry := range r.forms {
		if entry.lastUsed.Before(before) && !entry.store.Submitting() {
			delete(r.forms, id)
			n++
		}
	}
	return n
}
