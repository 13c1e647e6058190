package repository

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// MentorSeed is one entry of the mentor seed file.
type MentorSeed struct {
	Name      string   `yaml:"name"`
	Email     string   `yaml:"email"`
	Title     string   `yaml:"title"`
	Expertise []string `yaml:"expertise"`
}

type mentorSeedFile struct {
	Mentors []MentorSeed `yaml:"mentors"`
}

// LoadMentorSeeds parses a YAML file of the form `mentors: [...]`.
func LoadMentorSeeds(path string) ([]MentorSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mentor seed file: %w", err)
	}

	var file mentorSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mentor seed file %s: %w", path, err)
	}
	for i, m := range file.Mentors {
		if m.Name == "" {
			return nil, fmt.Errorf("mentor seed %d: name is required", i)
		}
	}
	return file.Mentors, nil
}

// SeedMentors writes seeds into the mentors collection when it is empty.
// It returns the number of records written.
func SeedMentors(ctx context.Context, store domain.RecordStore, seeds []MentorSeed) (int, error) {
	existing, err := store.List(ctx, domain.CollectionMentors)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, m := range seeds {
		fields := map[string]any{
			"name":      m.Name,
			"email":     m.Email,
			"title":     m.Title,
			"expertise": m.Expertise,
		}
		if _, err := store.Add(ctx, domain.CollectionMentors, fields); err != nil {
			return i, fmt.Errorf("seed mentor %q: %w", m.Name, err)
		}
	}
	return len(seeds), nil
}
