package domain

import (
	"context"
	"time"
)

// Collections held by the record store.
const (
	CollectionProfiles       = "profiles"
	CollectionSignupRequests = "signupRequests"
	CollectionMentors        = "mentors"
)

// StatusPending marks a signup request awaiting approval.
const StatusPending = "pending"

// Record is one document in a collection. CreatedAt is assigned by the
// store on first write and never changed afterwards.
type Record struct {
	Collection string
	Key        string
	Fields     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// String returns the named field when it holds a string.
func (r *Record) String(field string) string {
	if r == nil {
		return ""
	}
	s, _ := r.Fields[field].(string)
	return s
}

// Strings returns the named field as a string slice, skipping non-strings.
func (r *Record) Strings(field string) []string {
	if r == nil {
		return nil
	}
	switch v := r.Fields[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// PutOptions controls Put. With Merge the given fields are merged into the
// existing document; without it the document is replaced.
type PutOptions struct {
	Merge bool
}

// RecordStore is the document store contract.
// Implementations live in internal/core/repository.
type RecordStore interface {
	// Get returns the record, or (nil, nil) when it does not exist.
	Get(ctx context.Context, collection, key string) (*Record, error)

	// Put writes the record under key.
	Put(ctx context.Context, collection, key string, fields map[string]any, opts PutOptions) error

	// Add writes a record under a store-generated key and returns the key.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// List returns every record of the collection, oldest first.
	List(ctx context.Context, collection string) ([]Record, error)
}

// ProfileRecord is the role-bearing view of an approved profile or a
// pending signup request.
type ProfileRecord struct {
	UID       string
	Role      Role
	Name      string
	Email     string
	Status    string
	CreatedAt time.Time
}

// ProfileFromRecord reads a ProfileRecord. The display name is fullName,
// falling back to name.
func ProfileFromRecord(r *Record) ProfileRecord {
	name := r.String("fullName")
	if name == "" {
		name = r.String("name")
	}
	uid := r.String("uid")
	if uid == "" {
		uid = r.Key
	}
	return ProfileRecord{
		UID:       uid,
		Role:      ParseRole(r.String("role")),
		Name:      name,
		Email:     r.String("email"),
		Status:    r.String("status"),
		CreatedAt: r.CreatedAt,
	}
}

// PendingSignupFields builds the fields of a pending signup request.
func PendingSignupFields(uid, email, fullName string, role Role) map[string]any {
	return map[string]any{
		"uid":      uid,
		"email":    email,
		"fullName": fullName,
		"role":     string(role),
		"status":   StatusPending,
	}
}
