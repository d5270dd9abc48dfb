package project

import "time"

// FundsStatus tracks whether escrow funds have been secured for a project.
type FundsStatus string

const (
	FundsPending FundsStatus = "pending"
	FundsSecured FundsStatus = "secured"
)

// Project mirrors the projects table. AssignedTeam is set once at assignment
// time and immutable thereafter; ordering is preserved because milestone
// splits follow it.
type Project struct {
	ID             string
	Title          string
	RequiredSkills []string
	Location       *string
	Budget         int64
	AssignedTeam   []string
	FundsStatus    FundsStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filters narrows project listings.
type Filters struct {
	FundsStatus FundsStatus
	Page        int
	PageSize    int
}
