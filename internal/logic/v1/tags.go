package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/middleware"
)

// ErrTagsDisabled indicates no tag generator is configured.
var ErrTagsDisabled = errors.New("profile tag suggestions are not configured")

// TagGenerator suggests profile tags from free-text skills.
type TagGenerator interface {
	GenerateTags(ctx context.Context, skills string) ([]string, error)
}

// TagService validates skills input and post-processes generated tags.
type TagService struct {
	gen      TagGenerator
	validate *validator.Validate
}

// NewTagService creates a TagService. gen may be nil, in which case
// Suggest returns ErrTagsDisabled.
func NewTagService(gen TagGenerator) *TagService {
	return &TagService{gen: gen, validate: newValidator()}
}

// Suggest returns de-duplicated, trimmed tags for skills.
func (s *TagService) Suggest(ctx context.Context, skills string) ([]string, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.suggest_tags", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("skills.length", len(skills)),
	))
	defer span.End()

	if err := validateStruct(s.validate, domain.SuggestTagsRequest{Skills: skills}); err != nil {
		return nil, err
	}
	if s.gen == nil {
		return nil, ErrTagsDisabled
	}

	raw, err := s.gen.GenerateTags(ctx, skills)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate tags: %w", err)
	}

	tags := normalizeTags(raw)
	if len(tags) == 0 {
		return nil, ErrTagGeneration
	}
	span.SetAttributes(attribute.Int("tags.count", len(tags)))
	return tags, nil
}

func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}
