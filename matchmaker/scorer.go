package matchmaker

import "herbid/business"

// Scoring weights for the partnership heuristic. Coverage dominates, local
// pairs get a flat bonus, and the reputation term contributes at most 0.4.
const (
	coverageWeight   = 0.6
	localBonus       = 0.15
	reputationWeight = 0.4
	defaultRate      = 0.5
)

// BestPair is the outcome of an exhaustive pairwise search.
type BestPair struct {
	Pair  [2]string
	Score float64
}

// ScoreTeam computes the compatibility score for exactly two profiles against
// a project's required skills and optional target location.
//
// Skill coverage is all-or-nothing: the pair scores the coverage term only
// when the union of their skills contains every required skill. A missing
// reputation defaults to 0.5, as does an absent prior-partnership record.
// The function is deterministic and symmetric in its two profile arguments.
func ScoreTeam(a, b business.Profile, requiredSkills []string, location string) float64 {
	coverage := 0.0
	if coversAll(a.Skills, b.Skills, requiredSkills) {
		coverage = 1.0
	}

	bonus := 0.0
	if location != "" && locatedAt(a, location) && locatedAt(b, location) {
		bonus = localBonus
	}

	avgReputation := (reputationOf(a) + reputationOf(b)) / 2

	priorSuccess := defaultRate
	if rate, ok := a.PriorPartners[b.ID]; ok {
		priorSuccess = rate
	} else if rate, ok := b.PriorPartners[a.ID]; ok {
		priorSuccess = rate
	}

	reputationScore := 0.5*avgReputation + 0.5*priorSuccess

	return coverage*(coverageWeight+bonus) + reputationWeight*reputationScore
}

// FindBestPair exhaustively scores every unordered pair of candidates and
// returns the maximum. Ties resolve to the first pair in iteration order, so
// results are stable for a stable input ordering. Fewer than two candidates
// yield an empty pair with score zero.
func FindBestPair(candidates []business.Profile, requiredSkills []string, location string) BestPair {
	if len(candidates) < 2 {
		return BestPair{}
	}

	best := BestPair{Score: -1}
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			score := ScoreTeam(candidates[i], candidates[j], requiredSkills, location)
			if score > best.Score {
				best = BestPair{
					Pair:  [2]string{candidates[i].ID, candidates[j].ID},
					Score: score,
				}
			}
		}
	}
	return best
}

func coversAll(skillsA, skillsB, required []string) bool {
	if len(required) == 0 {
		return true
	}
	union := make(map[string]struct{}, len(skillsA)+len(skillsB))
	for _, s := range skillsA {
		union[s] = struct{}{}
	}
	for _, s := range skillsB {
		union[s] = struct{}{}
	}
	for _, need := range required {
		if _, ok := union[need]; !ok {
			return false
		}
	}
	return true
}

func locatedAt(p business.Profile, location string) bool {
	return p.Location != nil && *p.Location == location
}

func reputationOf(p business.Profile) float64 {
	if p.Reputation == nil {
		return defaultRate
	}
	return *p.Reputation
}
