package v1

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/middleware"
)

// MentorService manages the mentors collection.
type MentorService struct {
	store    domain.RecordStore
	validate *validator.Validate
}

// NewMentorService creates a new MentorService.
func NewMentorService(store domain.RecordStore) *MentorService {
	return &MentorService{store: store, validate: newValidator()}
}

type newMentor struct {
	UID   string `json:"uid" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"userEmail" validate:"required"`
}

// Add appends a mentor entry for the signed-in user.
func (s *MentorService) Add(ctx context.Context, uid, name, email string) (*domain.Mentor, error) {
	ctx, span := middleware.StartSpan(ctx, "mentors.add", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", uid),
	))
	defer span.End()

	m := newMentor{UID: uid, Name: strings.TrimSpace(name), Email: email}
	if err := validateStruct(s.validate, m); err != nil {
		return nil, err
	}

	key, err := s.store.Add(ctx, domain.CollectionMentors, map[string]any{
		"uid":   m.UID,
		"name":  m.Name,
		"email": m.Email,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("add mentor: %w", err)
	}

	rec, err := s.store.Get(ctx, domain.CollectionMentors, key)
	if err != nil || rec == nil {
		// Written but not readable back; report what was written.
		return &domain.Mentor{ID: key, UID: m.UID, Name: m.Name, Email: m.Email, CreatedAt: time.Now()}, nil
	}
	mentor := domain.MentorFromRecord(rec)
	return &mentor, nil
}

// Search lists mentors whose name, title or expertise contains query,
// ignoring case. An empty query lists everyone.
func (s *MentorService) Search(ctx context.Context, query string) ([]domain.Mentor, error) {
	ctx, span := middleware.StartSpan(ctx, "mentors.search", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	records, err := s.store.List(ctx, domain.CollectionMentors)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list mentors: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	mentors := make([]domain.Mentor, 0, len(records))
	for i := range records {
		m := domain.MentorFromRecord(&records[i])
		if q == "" || mentorMatches(m, q) {
			mentors = append(mentors, m)
		}
	}

	span.SetAttributes(attribute.Int("mentors.count", len(mentors)))
	return mentors, nil
}

func mentorMatches(m domain.Mentor, q string) bool {
	if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	for _, e := range m.Expertise {
		if strings.Contains(strings.ToLower(e), q) {
			return true
		}
	}
	return false
}
