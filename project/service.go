package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service exposes business-level project operations.
type Service struct {
	repo  Repository
	idGen func() string
}

// CreateParams enumerates the fields required to open a project for bidding.
type CreateParams struct {
	Title          string
	RequiredSkills []string
	Location       *string
	Budget         int64
}

// ListResult pairs a page of projects with the unfiltered total.
type ListResult struct {
	Items []Project
	Total int
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		idGen: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Project, error) {
	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return Project{}, fmt.Errorf("project: title required")
	}

	skills := make([]string, 0, len(params.RequiredSkills))
	for _, skill := range params.RequiredSkills {
		if trimmed := strings.TrimSpace(skill); trimmed != "" {
			skills = append(skills, trimmed)
		}
	}
	if len(skills) == 0 {
		return Project{}, fmt.Errorf("project: required skills missing")
	}
	if params.Budget <= 0 {
		return Project{}, fmt.Errorf("project: budget must be positive")
	}

	return s.repo.Create(ctx, Project{
		ID:             s.idGen(),
		Title:          params.Title,
		RequiredSkills: skills,
		Location:       params.Location,
		Budget:         params.Budget,
		FundsStatus:    FundsPending,
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// AssignTeam sets the project's team. Assignment is one-shot: re-assignment
// fails with ErrTeamAlreadyAssigned so downstream milestone splits stay
// stable.
func (s *Service) AssignTeam(ctx context.Context, projectID string, teamIDs []string) (Project, error) {
	if projectID == "" {
		return Project{}, fmt.Errorf("project: missing project id")
	}
	if len(teamIDs) == 0 {
		return Project{}, fmt.Errorf("project: team ids required")
	}

	seen := make(map[string]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		if id == "" {
			return Project{}, fmt.Errorf("project: empty team member id")
		}
		if _, dup := seen[id]; dup {
			return Project{}, fmt.Errorf("project: duplicate team member %s", id)
		}
		seen[id] = struct{}{}
	}

	return s.repo.AssignTeam(ctx, projectID, teamIDs)
}
