package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"mentor", RoleMentor},
		{"mentee", RoleMentee},
		{"unknown", RoleUnknown},
		{"admin", RoleUnknown},
		{"Mentor", RoleUnknown},
		{"", RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestDashboardPath(t *testing.T) {
	assert.Equal(t, "/dashboard/mentor", DashboardPath(RoleMentor))
	assert.Equal(t, "/dashboard/mentee", DashboardPath(RoleMentee))
	assert.Equal(t, "/", DashboardPath(RoleUnknown))
	assert.Equal(t, "/", DashboardPath(Role("admin")))
}

func TestProfileFromRecord(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	p := ProfileFromRecord(&Record{
		Key:       "u1",
		CreatedAt: created,
		Fields: map[string]any{
			"role":     "mentor",
			"fullName": "Ada Lovelace",
			"name":     "Ada",
			"email":    "ada@example.com",
		},
	})
	assert.Equal(t, ProfileRecord{
		UID:       "u1",
		Role:      RoleMentor,
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		CreatedAt: created,
	}, p)

	p = ProfileFromRecord(&Record{Key: "u2", Fields: map[string]any{"role": "guest", "name": "Bo", "uid": "u2x"}})
	assert.Equal(t, RoleUnknown, p.Role)
	assert.Equal(t, "Bo", p.Name)
	assert.Equal(t, "u2x", p.UID)

	p = ProfileFromRecord(&Record{Key: "u3", Fields: map[string]any{"role": 7}})
	assert.Equal(t, RoleUnknown, p.Role)
	assert.Empty(t, p.Name)
}

func TestRecordStrings(t *testing.T) {
	r := &Record{Fields: map[string]any{
		"a": []string{"Go"},
		"b": []any{"Go", 3, "Rust"},
		"c": "Go",
	}}
	assert.Equal(t, []string{"Go"}, r.Strings("a"))
	assert.Equal(t, []string{"Go", "Rust"}, r.Strings("b"))
	assert.Nil(t, r.Strings("c"))

	var nilRecord *Record
	assert.Empty(t, nilRecord.String("a"))
	assert.Nil(t, nilRecord.Strings("a"))
}

func TestPendingSignupFields(t *testing.T) {
	f := PendingSignupFields("u2", "u2@example.com", "Una", RoleMentee)
	assert.Equal(t, map[string]any{
		"uid": "u2", "email": "u2@example.com", "fullName": "Una", "role": "mentee", "status": StatusPending,
	}, f)
}
