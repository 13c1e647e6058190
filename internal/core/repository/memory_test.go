package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

func TestMemoryRecordStoreGetAbsent(t *testing.T) {
	s := NewMemoryRecordStore()
	rec, err := s.Get(context.Background(), domain.CollectionProfiles, "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryRecordStorePutReplaceAndMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRecordStore()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Put(ctx, "c", "k", map[string]any{"a": "1", "b": "2"}, domain.PutOptions{}))

	clock = clock.Add(time.Hour)
	require.NoError(t, s.Put(ctx, "c", "k", map[string]any{"b": "3", "c": "4"}, domain.PutOptions{Merge: true}))

	rec, err := s.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "3", "c": "4"}, rec.Fields)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rec.CreatedAt, "created_at is kept on update")
	assert.Equal(t, clock, rec.UpdatedAt)

	require.NoError(t, s.Put(ctx, "c", "k", map[string]any{"z": "9"}, domain.PutOptions{}))
	rec, err = s.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"z": "9"}, rec.Fields)
}

func TestMemoryRecordStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRecordStore()
	require.NoError(t, s.Put(ctx, "c", "k", map[string]any{"role": "mentor"}, domain.PutOptions{}))

	rec, err := s.Get(ctx, "c", "k")
	require.NoError(t, err)
	rec.Fields["role"] = "mentee"

	again, err := s.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, "mentor", again.String("role"))
}

func TestMemoryRecordStoreAddAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRecordStore()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	first, err := s.Add(ctx, domain.CollectionMentors, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	second, err := s.Add(ctx, domain.CollectionMentors, map[string]any{"name": "Grace"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	list, err := s.List(ctx, domain.CollectionMentors)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ada", list[0].String("name"))
	assert.Equal(t, "Grace", list[1].String("name"))

	empty, err := s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepository()

	require.NoError(t, r.Create(ctx, domain.UserRow{UID: "u1", Email: "A@Example.com", Provider: domain.ProviderPassword}))
	require.NoError(t, r.Create(ctx, domain.UserRow{UID: "g1", Email: "a@example.com", Provider: domain.ProviderGoogle, ProviderSubject: "sub-1"}))

	u, err := r.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.UID)

	g, err := r.GetByProviderSubject(ctx, domain.ProviderGoogle, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "g1", g.UID)

	exists, err := r.ExistsByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.Delete(ctx, "u1"))
	require.NoError(t, r.Delete(ctx, "u1"))
	u, err = r.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestMemoryTokenRepositoryRevoke(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTokenRepository()
	require.NoError(t, r.Create(ctx, "t1", "u1", time.Now().Add(time.Hour)))

	require.NoError(t, r.Revoke(ctx, "t1"))
	require.NoError(t, r.Revoke(ctx, "t1"))
	require.NoError(t, r.Revoke(ctx, "unknown"))

	row, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, row.Revoked)
}

func TestSeedMentors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mentors.yaml")
	content := `mentors:
  - name: Dr. Evelyn Reed
    title: Principal Software Architect
    expertise: [Software Architecture, Cloud Computing]
  - name: Marcus Chen
    title: Lead UX Designer
    expertise: [UX Design, Figma]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	seeds, err := LoadMentorSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, []string{"UX Design", "Figma"}, seeds[1].Expertise)

	ctx := context.Background()
	store := NewMemoryRecordStore()
	n, err := SeedMentors(ctx, store, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = SeedMentors(ctx, store, seeds)
	require.NoError(t, err)
	assert.Zero(t, n, "a populated collection is not seeded twice")
}

func TestLoadMentorSeedsRejectsNameless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mentors:\n  - title: nobody\n"), 0o600))

	_, err := LoadMentorSeeds(path)
	assert.ErrorContains(t, err, "name is required")
}
