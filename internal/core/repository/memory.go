package repository

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// MemoryRecordStore is an in-process domain.RecordStore, used when
// DATABASE_DRIVER=memory and in tests.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*domain.Record
	now     func() time.Time
}

// NewMemoryRecordStore returns an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]map[string]*domain.Record),
		now:     time.Now,
	}
}

func cloneRecord(r *domain.Record) *domain.Record {
	c := *r
	c.Fields = maps.Clone(r.Fields)
	return &c
}

// Get returns a copy of the record, or (nil, nil).
func (s *MemoryRecordStore) Get(_ context.Context, collection, key string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[collection][key]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

// Put upserts the record, merging fields when opts.Merge is set.
func (s *MemoryRecordStore) Put(_ context.Context, collection, key string, fields map[string]any, opts domain.PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	coll := s.collection(collection)
	existing, ok := coll[key]
	if !ok {
		coll[key] = &domain.Record{
			Collection: collection,
			Key:        key,
			Fields:     maps.Clone(fields),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return nil
	}

	if opts.Merge {
		if existing.Fields == nil {
			existing.Fields = make(map[string]any, len(fields))
		}
		maps.Copy(existing.Fields, fields)
	} else {
		existing.Fields = maps.Clone(fields)
	}
	existing.UpdatedAt = now
	return nil
}

// Add inserts the record under a random UUID key.
func (s *MemoryRecordStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	key := uuid.NewString()
	return key, s.Put(ctx, collection, key, fields, domain.PutOptions{})
}

// List returns copies of the collection's records, oldest first.
func (s *MemoryRecordStore) List(_ context.Context, collection string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Record, 0, len(s.records[collection]))
	for _, rec := range s.records[collection] {
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryRecordStore) collection(name string) map[string]*domain.Record {
	coll, ok := s.records[name]
	if !ok {
		coll = make(map[string]*domain.Record)
		s.records[name] = coll
	}
	return coll
}

// MemoryUserRepository is an in-process domain.UserRepository.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.UserRow
}

// NewMemoryUserRepository returns an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.UserRow)}
}

func (r *MemoryUserRepository) find(match func(domain.UserRow) bool) *domain.UserRow {
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found
		}
	}
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.UserRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(func(u domain.UserRow) bool {
		return u.Provider == domain.ProviderPassword && strings.EqualFold(u.Email, email)
	}), nil
}

func (r *MemoryUserRepository) GetByUID(_ context.Context, uid string) (*domain.UserRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByProviderSubject(_ context.Context, provider, subject string) (*domain.UserRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(func(u domain.UserRow) bool {
		return u.Provider == provider && u.ProviderSubject == subject
	}), nil
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, err := r.GetByEmail(ctx, email)
	return u != nil, err
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.UserRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UID] = user
	return nil
}

func (r *MemoryUserRepository) UpdateLastLogin(context.Context, string) error {
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, uid)
	return nil
}

// MemoryTokenRepository is an in-process domain.TokenRepository.
type MemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.TokenRow
}

// NewMemoryTokenRepository returns an empty repository.
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]domain.TokenRow)}
}

func (r *MemoryTokenRepository) Create(_ context.Context, tokenID, uid string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenID] = domain.TokenRow{TokenID: tokenID, UID: uid, ExpiresAt: expiresAt}
	return nil
}

func (r *MemoryTokenRepository) Get(_ context.Context, tokenID string) (*domain.TokenRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.tokens[tokenID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *MemoryTokenRepository) Revoke(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.tokens[tokenID]; ok {
		row.Revoked = true
		r.tokens[tokenID] = row
	}
	return nil
}
