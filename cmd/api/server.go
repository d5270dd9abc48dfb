package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"herbid/business"
	"herbid/escrow"
	"herbid/matchmaker"
	"herbid/project"
)

type businessService interface {
	Register(ctx context.Context, params business.CreateParams) (business.Profile, error)
	GetByID(ctx context.Context, id string) (business.Profile, error)
	List(ctx context.Context, limit int) ([]business.Profile, error)
}

type projectService interface {
	Create(ctx context.Context, params project.CreateParams) (project.Project, error)
	GetByID(ctx context.Context, id string) (project.Project, error)
	List(ctx context.Context, filters project.Filters) (project.ListResult, error)
	AssignTeam(ctx context.Context, projectID string, teamIDs []string) (project.Project, error)
}

type matchService interface {
	MatchTeam(ctx context.Context, projectID string) (matchmaker.MatchResult, error)
}

type escrowService interface {
	SecureFunds(ctx context.Context, params escrow.SecureFundsParams) (escrow.SecureFundsResult, error)
	ConfirmMilestone(ctx context.Context, projectID, teamMemberID string) (escrow.ConfirmResult, error)
	ListByProject(ctx context.Context, projectID string) ([]escrow.Transaction, error)
}

// Server wires the HTTP surface to the domain services. Every response uses
// the {"success": ...} envelope; failures carry {"success":false,"error":...}.
type Server struct {
	businessService businessService
	projectService  projectService
	matchService    matchService
	escrowService   escrowService
	log             *zap.Logger
}

func NewServer(businesses businessService, projects projectService, matches matchService, escrows escrowService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		businessService: businesses,
		projectService:  projects,
		matchService:    matches,
		escrowService:   escrows,
		log:             log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/matchmaker/users", s.handleUsers)
	mux.HandleFunc("/api/matchmaker/users/", s.handleUser)
	mux.HandleFunc("/api/matchmaker/projects", s.handleProjects)
	mux.HandleFunc("/api/matchmaker/projects/", s.handleProject)
	mux.HandleFunc("/api/matchmaker/match-team", s.handleMatchTeam)
	mux.HandleFunc("/api/matchmaker/assign-team", s.handleAssignTeam)
	mux.HandleFunc("/api/matchmaker/secure-funds", s.handleSecureFunds)
	mux.HandleFunc("/api/matchmaker/confirm-milestone", s.handleConfirmMilestone)
	mux.HandleFunc("/api/matchmaker/transactions/", s.handleTransactions)
	return mux
}

type userResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Skills        []string           `json:"skills"`
	Location      *string            `json:"location,omitempty"`
	Reputation    *float64           `json:"reputation,omitempty"`
	PriorPartners map[string]float64 `json:"priorPartners,omitempty"`
	CreatedAt     string             `json:"createdAt"`
}

type projectResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	RequiredSkills []string `json:"requiredSkills"`
	Location       *string  `json:"location,omitempty"`
	Budget         int64    `json:"budget"`
	AssignedTeam   []string `json:"assignedTeam"`
	FundsStatus    string   `json:"fundsStatus"`
	CreatedAt      string   `json:"createdAt"`
}

type milestoneResponse struct {
	ID               string  `json:"id"`
	TeamMemberID     string  `json:"teamMemberId"`
	Amount           int64   `json:"amount"`
	Status           string  `json:"status"`
	ConfirmedAt      *string `json:"confirmedAt,omitempty"`
	PaidAt           *string `json:"paidAt,omitempty"`
	PaymentReference *string `json:"paymentReference,omitempty"`
}

type transactionResponse struct {
	ID               string              `json:"id"`
	ProjectID        string              `json:"projectId"`
	Amount           int64               `json:"amount"`
	Status           string              `json:"status"`
	PaymentReference string              `json:"paymentReference"`
	Milestones       []milestoneResponse `json:"milestones"`
	CreatedAt        string              `json:"createdAt"`
}

type matchResponse struct {
	ProjectID string    `json:"projectId"`
	Pair      [2]string `json:"pair"`
	PairNames [2]string `json:"pairNames"`
	Score     float64   `json:"score"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profiles, err := s.businessService.List(r.Context(), 100)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		users := make([]userResponse, 0, len(profiles))
		for _, p := range profiles {
			users = append(users, toUserResponse(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
	case http.MethodPost:
		var body struct {
			Name       string   `json:"name"`
			Skills     []string `json:"skills"`
			Location   *string  `json:"location"`
			Reputation *float64 `json:"reputation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		profile, err := s.businessService.Register(r.Context(), business.CreateParams{
			Name:       body.Name,
			Skills:     body.Skills,
			Location:   body.Location,
			Reputation: body.Reputation,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": toUserResponse(profile)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/matchmaker/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "Missing user id")
		return
	}

	profile, err := s.businessService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, business.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": toUserResponse(profile)})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		result, err := s.projectService.List(r.Context(), project.Filters{})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		projects := make([]projectResponse, 0, len(result.Items))
		for _, p := range result.Items {
			projects = append(projects, toProjectResponse(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "projects": projects, "total": result.Total})
	case http.MethodPost:
		var body struct {
			Title          string   `json:"title"`
			RequiredSkills []string `json:"requiredSkills"`
			Location       *string  `json:"location"`
			Budget         int64    `json:"budget"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		proj, err := s.projectService.Create(r.Context(), project.CreateParams{
			Title:          body.Title,
			RequiredSkills: body.RequiredSkills,
			Location:       body.Location,
			Budget:         body.Budget,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "project": toProjectResponse(proj)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/matchmaker/projects/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "Missing project id")
		return
	}

	proj, err := s.projectService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "project": toProjectResponse(proj)})
}

func (s *Server) handleMatchTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var body struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	result, err := s.matchService.MatchTeam(r.Context(), body.ProjectID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"match_result": matchResponse{
			ProjectID: result.ProjectID,
			Pair:      result.Pair,
			PairNames: result.PairNames,
			Score:     result.Score,
		},
	})
}

func (s *Server) handleAssignTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var body struct {
		ProjectID string   `json:"projectId"`
		TeamIDs   []string `json:"teamIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" || len(body.TeamIDs) == 0 {
		writeError(w, http.StatusBadRequest, "projectId and teamIds are required")
		return
	}

	proj, err := s.projectService.AssignTeam(r.Context(), body.ProjectID, body.TeamIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "project": toProjectResponse(proj)})
}

func (s *Server) handleSecureFunds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var body struct {
		ProjectID   string `json:"projectId"`
		Amount      int64  `json:"amount"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.escrowService.SecureFunds(r.Context(), escrow.SecureFundsParams{
		ProjectID:    body.ProjectID,
		Amount:       body.Amount,
		PayerContact: body.PhoneNumber,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"transactionId": result.TransactionID,
		"reference":     result.Reference,
		"message":       result.Message,
	})
}

func (s *Server) handleConfirmMilestone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var body struct {
		ProjectID    string `json:"projectId"`
		TeamMemberID string `json:"teamMemberId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" || body.TeamMemberID == "" {
		writeError(w, http.StatusBadRequest, "projectId and teamMemberId are required")
		return
	}

	result, err := s.escrowService.ConfirmMilestone(r.Context(), body.ProjectID, body.TeamMemberID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"paymentAmount":    result.PaymentAmount,
		"paymentReference": result.PaymentReference,
		"message":          result.Message,
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	projectID := strings.TrimPrefix(r.URL.Path, "/api/matchmaker/transactions/")
	if projectID == "" || strings.Contains(projectID, "/") {
		writeError(w, http.StatusBadRequest, "Missing project id")
		return
	}

	transactions, err := s.escrowService.ListByProject(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(transactions))
	for _, txn := range transactions {
		out = append(out, toTransactionResponse(txn))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactions": out})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses:
// NotFound -> 404, InvalidState -> 409, InvalidInput -> 400, the rest -> 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, business.ErrNotFound),
		errors.Is(err, project.ErrNotFound),
		errors.Is(err, escrow.ErrTransactionNotFound),
		errors.Is(err, escrow.ErrMilestoneNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, project.ErrTeamAlreadyAssigned),
		errors.Is(err, escrow.ErrMilestoneNotPending),
		errors.Is(err, escrow.ErrNoAssignedTeam):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, project.ErrUnknownTeamMember),
		errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrMissingContact):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func toUserResponse(p business.Profile) userResponse {
	return userResponse{
		ID:            p.ID,
		Name:          p.Name,
		Skills:        p.Skills,
		Location:      p.Location,
		Reputation:    p.Reputation,
		PriorPartners: p.PriorPartners,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func toProjectResponse(p project.Project) projectResponse {
	return projectResponse{
		ID:             p.ID,
		Title:          p.Title,
		RequiredSkills: p.RequiredSkills,
		Location:       p.Location,
		Budget:         p.Budget,
		AssignedTeam:   p.AssignedTeam,
		FundsStatus:    string(p.FundsStatus),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionResponse(txn escrow.Transaction) transactionResponse {
	milestones := make([]milestoneResponse, 0, len(txn.Milestones))
	for _, m := range txn.Milestones {
		milestones = append(milestones, milestoneResponse{
			ID:               m.ID,
			TeamMemberID:     m.TeamMemberID,
			Amount:           m.Amount,
			Status:           string(m.Status),
			ConfirmedAt:      formatTimePtr(m.ConfirmedAt),
			PaidAt:           formatTimePtr(m.PaidAt),
			PaymentReference: m.PaymentReference,
		})
	}
	return transactionResponse{
		ID:               txn.ID,
		ProjectID:        txn.ProjectID,
		Amount:           txn.Amount,
		Status:           string(txn.Status),
		PaymentReference: txn.PaymentReference,
		Milestones:       milestones,
		CreatedAt:        txn.CreatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
