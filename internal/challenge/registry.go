// Package challenge keeps open invitations between two players in memory until the
// invited player answers.
package challenge

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrSelfChallenge  = errors.New("cannot challenge yourself")
	ErrAlreadyPending = errors.New("target already has a pending challenge")
	ErrNotFound       = errors.New("challenge not found")
	ErrNotTarget      = errors.New("only the challenged player can answer")
)

const DefaultTTL = 10 * time.Minute

type Registry struct {
	mu   sync.Mutex
	byID map[string]*Challenge
	ttl  time.Duration
	now  func() time.Time
}

// NewRegistry keeps pending challenges for ttl (DefaultTTL when zero). now may be nil.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{byID: make(map[string]*Challenge), ttl: ttl, now: now}
}

// Create opens a challenge. A target can have only one pending challenge at a time.
func (r *Registry) Create(challengerID, challengerName, targetID string, color ColorChoice, timeControl string) (Challenge, error) {
	if challengerID == "" || targetID == "" {
		return Challenge{}, ErrInvalidArgs
	}
	if challengerID == targetID {
		return Challenge{}, ErrSelfChallenge
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	for _, ch := range r.byID {
		if ch.TargetID == targetID && ch.Open() {
			return Challenge{}, ErrAlreadyPending
		}
	}
	ch := &Challenge{
		ID:             uuid.NewString(),
		ChallengerID:   challengerID,
		ChallengerName: challengerName,
		TargetID:       targetID,
		Color:          color,
		TimeControl:    timeControl,
		Status:         StatusPending,
		CreatedAt:      r.now(),
	}
	r.byID[ch.ID] = ch
	return *ch, nil
}

func (r *Registry) Get(id string) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	ch, ok := r.byID[id]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return *ch, nil
}

// Pending lists the open challenges addressed to targetID, oldest first.
func (r *Registry) Pending(targetID string) []Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	var out []Challenge
	for _, ch := range r.byID {
		if ch.TargetID == targetID && ch.Open() {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Accept resolves a pending challenge. The caller starts the game and records it with
// AttachGame.
func (r *Registry) Accept(id, targetID, targetName string) (Challenge, error) {
	return r.resolve(id, targetID, func(ch *Challenge) {
		ch.Status = StatusAccepted
		ch.TargetName = targetName
	})
}

func (r *Registry) Decline(id, targetID string) (Challenge, error) {
	return r.resolve(id, targetID, func(ch *Challenge) { ch.Status = StatusDeclined })
}

// AttachGame links an accepted challenge to the game it started.
func (r *Registry) AttachGame(id, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.byID[id]; ok {
		ch.GameID = gameID
	}
}

func (r *Registry) resolve(id, targetID string, apply func(*Challenge)) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	ch, ok := r.byID[id]
	if !ok || !ch.Open() {
		return Challenge{}, ErrNotFound
	}
	if ch.TargetID != targetID {
		return Challenge{}, ErrNotTarget
	}
	apply(ch)
	ch.ResolvedAt = r.now()
	return *ch, nil
}

// expireLocked marks stale pending challenges expired and forgets resolved ones after
// another ttl.
func (r *Registry) expireLocked() {
	now := r.now()
	for id, ch := range r.byID {
		if !ch.stale(now, r.ttl) {
			continue
		}
		if ch.Open() {
			ch.Status = StatusExpired
			ch.ResolvedAt = now
			continue
		}
		delete(r.byID, id)
	}
}
