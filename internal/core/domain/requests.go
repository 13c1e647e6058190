package domain

import "time"

// LoginRequest is the email/password login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=128"`
}

// GoogleLoginRequest completes federated sign-in. Role is used only when
// no record exists for the identity yet.
type GoogleLoginRequest struct {
	Role  string `json:"role"`
	Code  string `json:"code" binding:"required"`
	State string `json:"state"`
}

// SignupRequest creates an account and a pending signup request.
type SignupRequest struct {
	FullName string `json:"fullName" validate:"min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
	Role     string `json:"role" validate:"oneof=mentor mentee"`
}

// CreateMentorRequest adds the current user to the mentors collection.
type CreateMentorRequest struct {
	Name string `json:"name" validate:"required"`
}

// SuggestTagsRequest carries comma-separated skills.
type SuggestTagsRequest struct {
	Skills string `json:"skills" validate:"min=3,max=500"`
}

// SessionResponse is returned by every auth endpoint.
type SessionResponse struct {
	Session  Session `json:"session"`
	Redirect string  `json:"redirect,omitempty"`
	Token    string  `json:"token,omitempty"`
}

// Mentor is an entry of the mentors collection.
type Mentor struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Title     string    `json:"title,omitempty"`
	Expertise []string  `json:"expertise,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MentorFromRecord reads a Mentor from a mentors record.
func MentorFromRecord(r *Record) Mentor {
	return Mentor{
		ID:        r.Key,
		UID:       r.String("uid"),
		Name:      r.String("name"),
		Email:     r.String("email"),
		Title:     r.String("title"),
		Expertise: r.Strings("expertise"),
		CreatedAt: r.CreatedAt,
	}
}
