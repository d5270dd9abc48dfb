package matchmaker

import (
	"context"
	"fmt"

	"herbid/business"
	"herbid/project"
)

// candidatePoolLimit caps how many profiles the exhaustive O(n²) search
// considers in one request.
const candidatePoolLimit = 100

// ProfileLister supplies the candidate pool.
type ProfileLister interface {
	List(ctx context.Context, limit int) ([]business.Profile, error)
}

// ProjectReader supplies the project being matched.
type ProjectReader interface {
	GetByID(ctx context.Context, id string) (project.Project, error)
}

// MatchResult is the recommendation returned for a project.
type MatchResult struct {
	ProjectID string
	Pair      [2]string
	PairNames [2]string
	Score     float64
}

// Service orchestrates candidate loading and pair scoring.
type Service struct {
	profiles ProfileLister
	projects ProjectReader
}

func NewService(profiles ProfileLister, projects ProjectReader) *Service {
	return &Service{profiles: profiles, projects: projects}
}

// MatchTeam scores every candidate pair against the project's requirements
// and returns the best one. Profiles without skills never enter the pool.
// An undersized pool is not an error: the result carries an empty pair and
// score zero, mirroring the scorer's total-function contract.
func (s *Service) MatchTeam(ctx context.Context, projectID string) (MatchResult, error) {
	if projectID == "" {
		return MatchResult{}, fmt.Errorf("matchmaker: missing project id")
	}

	proj, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return MatchResult{}, err
	}

	all, err := s.profiles.List(ctx, candidatePoolLimit)
	if err != nil {
		return MatchResult{}, fmt.Errorf("matchmaker: load candidates: %w", err)
	}

	candidates := make([]business.Profile, 0, len(all))
	for _, p := range all {
		if p.Matchable() {
			candidates = append(candidates, p)
		}
	}

	location := ""
	if proj.Location != nil {
		location = *proj.Location
	}

	best := FindBestPair(candidates, proj.RequiredSkills, location)

	result := MatchResult{
		ProjectID: proj.ID,
		Pair:      best.Pair,
		Score:     best.Score,
	}
	for _, p := range candidates {
		if p.ID == best.Pair[0] {
			result.PairNames[0] = p.Name
		}
		if p.ID == best.Pair[1] {
			result.PairNames[1] = p.Name
		}
	}
	return result, nil
}
