// Package scoring ranks attendee profiles by how promising they are as
// outreach targets. The score never gates processing; it is surfaced through
// the API so an operator can triage who to follow up with first.
package scoring

import (
	"strings"

	"github.com/augustalabs/summit-outreach/internal/entity"
)

const (
	categoryCompleteness = "profile_completeness"
	categorySeniority    = "seniority"
	categoryIndustry     = "industry_fit"
	categoryCommunity    = "community_presence"
)

// Industries where reference clients exist; profiles in these verticals get
// the strongest opening lines.
var fitIndustryTerms = []string{
	"automotive", "energy", "oil", "gas", "chemical", "pharma",
	"logistics", "supply chain", "shipping", "water", "environmental",
	"infrastructure", "construction", "industrial", "manufacturing",
	"software", "saas", "consulting",
}

var seniorTitleTerms = []string{
	"chief", "ceo", "cto", "coo", "cfo", "founder", "co-founder",
	"president", "vp", "vice president", "head of", "director", "partner",
}

var managerTitleTerms = []string{"manager", "lead", "principal"}

// Result reports the aggregate score and the per-category breakdown.
type Result struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
}

// Score evaluates a profile and returns the breakdown. The maximum is 100.
func Score(profile entity.Profile) Result {
	breakdown := map[string]int{
		categoryCompleteness: scoreCompleteness(profile),
		categorySeniority:    scoreSeniority(profile.Title),
		categoryIndustry:     scoreIndustryFit(profile),
		categoryCommunity:    scoreCommunityPresence(profile.Communities),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return Result{
		Total:     total,
		Breakdown: breakdown,
	}
}

// scoreCompleteness rewards profiles with enough substance to personalize a
// message from. Capped at 30.
func scoreCompleteness(profile entity.Profile) int {
	score := 0
	if strings.TrimSpace(profile.Title) != "" {
		score += 5
	}
	if strings.TrimSpace(profile.Company) != "" {
		score += 5
	}
	if strings.TrimSpace(profile.Location) != "" {
		score += 5
	}
	if strings.TrimSpace(profile.Industry) != "" {
		score += 5
	}
	if len(strings.TrimSpace(profile.Bio)) >= 80 {
		score += 10
	} else if strings.TrimSpace(profile.Bio) != "" {
		score += 5
	}
	if score > 30 {
		return 30
	}
	return score
}

// scoreSeniority estimates decision-making power from the title. Capped at
// 30.
func scoreSeniority(title string) int {
	title = strings.ToLower(title)
	if title == "" {
		return 0
	}
	for _, term := range seniorTitleTerms {
		if strings.Contains(title, term) {
			return 30
		}
	}
	for _, term := range managerTitleTerms {
		if strings.Contains(title, term) {
			return 15
		}
	}
	return 5
}

// scoreIndustryFit checks the profile against the verticals we have
// reference clients in. Capped at 25.
func scoreIndustryFit(profile entity.Profile) int {
	industry := strings.ToLower(profile.Industry)
	bio := strings.ToLower(profile.Bio)

	for _, term := range fitIndustryTerms {
		if strings.Contains(industry, term) {
			return 25
		}
	}
	for _, term := range fitIndustryTerms {
		if strings.Contains(bio, term) {
			return 15
		}
	}
	return 0
}

// scoreCommunityPresence rewards attendees active in event communities, a
// weak signal that they respond to meeting requests. Capped at 15.
func scoreCommunityPresence(communities []string) int {
	count := 0
	for _, c := range communities {
		if strings.TrimSpace(c) != "" {
			count++
		}
	}
	score := count * 5
	if score > 15 {
		return 15
	}
	return score
}
