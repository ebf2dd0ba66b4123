package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/google/uuid"
)

// InMemoryStore is a ProfileStore kept in process memory. Used in tests and
// when no database DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	order    []string
	meals    map[string][]models.MealLogEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		meals:    make(map[string][]models.MealLogEntry),
	}
}

func (s *InMemoryStore) Exists(_ context.Context, identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[identity]
	return ok
}

func (s *InMemoryStore) CreateProfile(_ context.Context, p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.Identity]; ok {
		return ErrProfileExists
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.Identity] = p
	s.order = append(s.order, p.Identity)
	return nil
}

func (s *InMemoryStore) GetProfile(_ context.Context, identity string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[identity]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) ListIdentities(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *InMemoryStore) AddMeal(_ context.Context, e models.MealLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.meals[e.Identity] = append(s.meals[e.Identity], e)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) ListMeals(_ context.Context, identity string, limit int) ([]models.MealLogEntry, error) {
	s.mu.RLock()
	meals := append([]models.MealLogEntry(nil), s.meals[identity]...)
	s.mu.RUnlock()

	sort.SliceStable(meals, func(i, j int) bool { return meals[i].CreatedAt.After(meals[j].CreatedAt) })
	if limit > 0 && len(meals) > limit {
		meals = meals[:limit]
	}
	return meals, nil
}

func (s *InMemoryStore) Close() error { return nil }
