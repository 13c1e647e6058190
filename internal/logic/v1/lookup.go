package v1

import (
	"context"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// LookupStrategy is one source of role-bearing records. Lookup returns
// (nil, nil) when the source holds no record for uid.
type LookupStrategy interface {
	Name() string
	Lookup(ctx context.Context, uid string) (*domain.ProfileRecord, error)
}

// CollectionLookup looks the uid up as a key of a record store collection.
type CollectionLookup struct {
	Store      domain.RecordStore
	Collection string
}

func (l CollectionLookup) Name() string { return l.Collection }

func (l CollectionLookup) Lookup(ctx context.Context, uid string) (*domain.ProfileRecord, error) {
	rec, err := l.Store.Get(ctx, l.Collection, uid)
	if err != nil || rec == nil {
		return nil, err
	}
	profile := domain.ProfileFromRecord(rec)
	return &profile, nil
}

// DefaultLookups is approved profiles first, then pending signup requests.
func DefaultLookups(store domain.RecordStore) []LookupStrategy {
	return []LookupStrategy{
		CollectionLookup{Store: store, Collection: domain.CollectionProfiles},
		CollectionLookup{Store: store, Collection: domain.CollectionSignupRequests},
	}
}

// lookupResult is the outcome of a chain. source is "" when nothing matched.
type lookupResult struct {
	profile *domain.ProfileRecord
	source  string
	err     error
}

// runLookups walks the chain in order; the first hit wins. A failing
// strategy stops the chain and later sources are not consulted.
func runLookups(ctx context.Context, lookups []LookupStrategy, uid string) lookupResult {
	for _, l := range lookups {
		profile, err := l.Lookup(ctx, uid)
		if err != nil {
			return lookupResult{source: l.Name(), err: err}
		}
		if profile != nil {
			return lookupResult{profile: profile, source: l.Name()}
		}
	}
	return lookupResult{}
}
