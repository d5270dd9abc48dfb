package business

import (
	"context"
	"fmt"
	"strings"
)

// ProfileStore abstracts repository operations for the service.
type ProfileStore interface {
	Create(ctx context.Context, params CreateParams) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
}

// Service exposes business-level profile operations.
type Service struct {
	repo ProfileStore
}

// NewService builds a Service using the provided repository.
func NewService(repo ProfileStore) *Service {
	return &Service{repo: repo}
}

// Register validates and stores a new business profile.
func (s *Service) Register(ctx context.Context, params CreateParams) (Profile, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return Profile{}, fmt.Errorf("business: name required")
	}

	skills := make([]string, 0, len(params.Skills))
	for _, skill := range params.Skills {
		if trimmed := strings.TrimSpace(skill); trimmed != "" {
			skills = append(skills, trimmed)
		}
	}
	if len(skills) == 0 {
		return Profile{}, fmt.Errorf("business: at least one skill required")
	}
	params.Skills = skills

	if params.Reputation != nil && (*params.Reputation < 0 || *params.Reputation > 1) {
		return Profile{}, fmt.Errorf("business: reputation %v out of range", *params.Reputation)
	}

	return s.repo.Create(ctx, params)
}

// GetByID returns the business profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit business profiles.
func (s *Service) List(ctx context.Context, limit int) ([]Profile, error) {
	return s.repo.List(ctx, limit)
}
