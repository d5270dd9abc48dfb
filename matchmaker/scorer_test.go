package matchmaker

import (
	"math"
	"testing"

	"herbid/business"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreTeam_WorkedExample(t *testing.T) {
	a := business.Profile{
		ID:            "a",
		Skills:        []string{"Marketing"},
		Location:      strPtr("Nairobi"),
		Reputation:    floatPtr(0.8),
		PriorPartners: map[string]float64{},
	}
	b := business.Profile{
		ID:            "b",
		Skills:        []string{"Dev"},
		Location:      strPtr("Nairobi"),
		Reputation:    floatPtr(0.7),
		PriorPartners: map[string]float64{"a": 0.9},
	}

	score := ScoreTeam(a, b, []string{"Marketing", "Dev"}, "Nairobi")

	// coverage=1, bonus=0.15, avgRep=0.75, prior=0.9 ->
	// 1*(0.75) + 0.4*(0.5*0.75+0.5*0.9) = 1.08
	if !approx(score, 1.08) {
		t.Fatalf("expected score 1.08, got %v", score)
	}
}

func TestScoreTeam_Symmetric(t *testing.T) {
	a := business.Profile{
		ID:            "a",
		Skills:        []string{"Marketing", "Finance"},
		Location:      strPtr("Mombasa"),
		Reputation:    floatPtr(0.9),
		PriorPartners: map[string]float64{"b": 0.4},
	}
	b := business.Profile{
		ID:            "b",
		Skills:        []string{"Dev"},
		PriorPartners: map[string]float64{},
	}

	required := []string{"Marketing", "Dev"}
	if got, want := ScoreTeam(a, b, required, "Mombasa"), ScoreTeam(b, a, required, "Mombasa"); !approx(got, want) {
		t.Fatalf("score not symmetric: %v vs %v", got, want)
	}
}

func TestScoreTeam_MissingSkillZeroesCoverage(t *testing.T) {
	a := business.Profile{ID: "a", Skills: []string{"Marketing"}, Reputation: floatPtr(1.0)}
	b := business.Profile{ID: "b", Skills: []string{"Design"}, Reputation: floatPtr(1.0)}

	score := ScoreTeam(a, b, []string{"Marketing", "Dev"}, "")

	// Only the reputation term survives: 0.4 * (0.5*1.0 + 0.5*0.5) = 0.3.
	if !approx(score, 0.3) {
		t.Fatalf("expected 0.3, got %v", score)
	}
}

func TestScoreTeam_EmptyRequiredSkillsCountsAsCovered(t *testing.T) {
	a := business.Profile{ID: "a", Skills: []string{"Anything"}}
	b := business.Profile{ID: "b", Skills: []string{"Else"}}

	score := ScoreTeam(a, b, nil, "")

	// coverage=1, no bonus, defaults everywhere: 0.6 + 0.4*0.5 = 0.8.
	if !approx(score, 0.8) {
		t.Fatalf("expected 0.8, got %v", score)
	}
}

func TestScoreTeam_LocalBonusRequiresBothProfiles(t *testing.T) {
	a := business.Profile{ID: "a", Skills: []string{"Dev"}, Location: strPtr("Nairobi")}
	b := business.Profile{ID: "b", Skills: []string{"Dev"}}

	withOne := ScoreTeam(a, b, []string{"Dev"}, "Nairobi")
	b.Location = strPtr("Nairobi")
	withBoth := ScoreTeam(a, b, []string{"Dev"}, "Nairobi")

	if !approx(withBoth-withOne, 0.15) {
		t.Fatalf("expected bonus delta 0.15, got %v", withBoth-withOne)
	}
}

func TestFindBestPair_TooFewCandidates(t *testing.T) {
	for _, candidates := range [][]business.Profile{
		nil,
		{{ID: "only", Skills: []string{"Dev"}}},
	} {
		best := FindBestPair(candidates, []string{"Dev"}, "")
		if best.Pair != [2]string{} || best.Score != 0 {
			t.Fatalf("expected empty result for %d candidates, got %+v", len(candidates), best)
		}
	}
}

func TestFindBestPair_PicksHighestScore(t *testing.T) {
	candidates := []business.Profile{
		{ID: "a", Skills: []string{"Marketing"}},
		{ID: "b", Skills: []string{"Dev"}},
		{ID: "c", Skills: []string{"Marketing", "Dev"}, Reputation: floatPtr(0.95)},
	}

	best := FindBestPair(candidates, []string{"Marketing", "Dev"}, "")

	// Every pair covers the skills; (a,c) and (b,c) outscore (a,b) through
	// c's reputation, and (a,c) comes first in iteration order.
	if best.Pair != [2]string{"a", "c"} {
		t.Fatalf("expected pair (a,c), got %v", best.Pair)
	}
	if best.Score <= ScoreTeam(candidates[0], candidates[1], []string{"Marketing", "Dev"}, "") {
		t.Fatalf("best score %v not above baseline", best.Score)
	}
}

func TestFindBestPair_TieKeepsFirstPair(t *testing.T) {
	candidates := []business.Profile{
		{ID: "a", Skills: []string{"Dev"}},
		{ID: "b", Skills: []string{"Dev"}},
		{ID: "c", Skills: []string{"Dev"}},
	}

	best := FindBestPair(candidates, []string{"Dev"}, "")
	if best.Pair != [2]string{"a", "b"} {
		t.Fatalf("expected first tie pair (a,b), got %v", best.Pair)
	}
}
