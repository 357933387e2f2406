package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

var _ contract.IPresenceRegistry = (*Registry)(nil)

// Registry owns every participant record of the channel.
// A single lock guards the map, so each method observes a consistent view.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant // participant id -> record
	byName       map[string]string             // display name -> participant id
	now          func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]domain.Participant),
		byName:       make(map[string]string),
		now:          time.Now,
	}
}

// WithClock replaces the time source, used by tests to control idleness.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) Now() time.Time {
	return r.now().UTC()
}

// Upsert inserts or replaces the record for p.ID.
func (r *Registry) Upsert(p domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(p)
}

// Join resolves candidate by display name. A known name is switched back to
// ONLINE and returned with rejoined set, otherwise candidate is stored as is.
func (r *Registry) Join(candidate domain.Participant) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[nameKey(candidate.DisplayName)]; ok {
		existing := r.participants[id]
		existing.Status = domain.StatusOnline
		existing.LastActivityAt = r.Now()
		r.participants[id] = existing
		return existing, true
	}
	r.upsertLocked(candidate)
	return candidate, false
}

func (r *Registry) Get(id string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

func (r *Registry) FindByName(displayName string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[nameKey(displayName)]
	if !ok {
		return domain.Participant{}, false
	}
	return r.participants[id], true
}

// SetStatus updates the status and refreshes the activity timestamp.
// It returns the previous record so callers can report the transition.
func (r *Registry) SetStatus(id string, status domain.Status) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	previous := p
	p.Status = status
	p.LastActivityAt = r.Now()
	r.participants[id] = p
	return previous, true
}

func (r *Registry) TouchActivity(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return false
	}
	p.LastActivityAt = r.Now()
	r.participants[id] = p
	return true
}

// ListAll returns a copy of every record ordered by creation time.
func (r *Registry) ListAll() []domain.Participant {
	r.mu.RLock()
	all := lo.Values(r.participants)
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

// FindIdle returns ids of ONLINE participants inactive for longer than threshold.
func (r *Registry) FindIdle(threshold time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.Now()
	idle := lo.Filter(lo.Values(r.participants), func(p domain.Participant, _ int) bool {
		return p.IdleSince(now, threshold)
	})
	ids := lo.Map(idle, func(p domain.Participant, _ int) string { return p.ID })
	sort.Strings(ids)
	return ids
}

// Demote moves an idle ONLINE participant to AWAY.
// The idleness check is repeated under the lock, so activity recorded after
// FindIdle wins over the demotion.
func (r *Registry) Demote(id string, threshold time.Duration) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok || !p.IdleSince(r.Now(), threshold) {
		return domain.Participant{}, false
	}
	p.Status = domain.StatusAway
	r.participants[id] = p
	return p, true
}

func (r *Registry) upsertLocked(p domain.Participant) {
	if previous, ok := r.participants[p.ID]; ok && nameKey(previous.DisplayName) != nameKey(p.DisplayName) {
		delete(r.byName, nameKey(previous.DisplayName))
	}
	r.participants[p.ID] = p
	r.byName[nameKey(p.DisplayName)] = p.ID
}

func nameKey(displayName string) string {
	return strings.TrimSpace(displayName)
}
