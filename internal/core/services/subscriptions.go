package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

type subscription struct {
	viewerID string
	fn       func(domain.Update)
}

// AllViewers : un abonnement avec cet ID reçoit les updates de tous les lecteurs.
const AllViewers = ""

// Subscriptions remplace l'observation liée au cycle de vie de l'écran :
// subscribe(callback) -> token.
type Subscriptions struct {
	mu   sync.RWMutex
	subs map[string]subscription
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{subs: make(map[string]subscription)}
}

func (s *Subscriptions) Subscribe(viewerID string, fn func(domain.Update)) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.subs[token] = subscription{viewerID: viewerID, fn: fn}
	s.mu.Unlock()

	return token
}

// Unsubscribe est idempotent.
func (s *Subscriptions) Unsubscribe(token string) {
	s.mu.Lock()
	delete(s.subs, token)
	s.mu.Unlock()
}

// Publish appelle les callbacks du lecteur hors verrou.
func (s *Subscriptions) Publish(u domain.Update) {
	s.mu.RLock()
	fns := make([]func(domain.Update), 0, 1)
	for _, sub := range s.subs {
		if sub.viewerID == AllViewers || sub.viewerID == u.ViewerID {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Viewers liste les lecteurs ayant au moins un abonnement actif.
func (s *Subscriptions) Viewers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.subs))
	viewers := make([]string, 0, len(s.subs))
	for _, sub := range s.subs {
		if _, ok := seen[sub.viewerID]; ok || sub.viewerID == AllViewers {
			continue
		}
		seen[sub.viewerID] = struct{}{}
		viewers = append(viewers, sub.viewerID)
	}
	return viewers
}
