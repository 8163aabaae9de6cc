package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"VolunteerHub/server/internal/models"
)

func projectIDParam(r *http.Request) (int, bool) {
	idStr := chi.URLParam(r, "project_id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		log.Printf("Invalid project ID: %s", idStr)
		return 0, false
	}
	return id, true
}

func CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		City         string `json:"city"`
		Category     string `json:"category"`
		Capacity     int    `json:"capacity"`
		DepositCents int    `json:"deposit_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding project body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project := &models.Project{
		Title:        req.Title,
		Description:  req.Description,
		City:         req.City,
		Category:     req.Category,
		Capacity:     req.Capacity,
		DepositCents: req.DepositCents,
		CreatedBy:    actor.ID,
	}

	projectID, err := projectService.CreateProject(r.Context(), project)
	if err != nil {
		log.Printf("Error creating project: %v", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"project_id": projectID})
}

func ListProjects(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 20
	}

	projects, err := projectService.ListPublished(r.Context(),
		r.URL.Query().Get("city"), r.URL.Query().Get("category"),
		(page-1)*limit, limit)
	if err != nil {
		log.Printf("Error listing projects: %v", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projects)
}

func GetProjectById(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	project, err := projectService.GetProjectById(r.Context(), projectID)
	if err != nil {
		log.Printf("Error fetching project %d: %v", projectID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// PublishProject and ArchiveProject are the admin moderation actions.
func PublishProject(w http.ResponseWriter, r *http.Request) {
	moderateProject(w, r, projectService.Publish, "published")
}

func ArchiveProject(w http.ResponseWriter, r *http.Request) {
	moderateProject(w, r, projectService.Archive, "archived")
}

func moderateProject(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int) error, verb string) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != models.RoleAdmin {
		http.Error(w, "Only admins can moderate projects", http.StatusForbidden)
		return
	}

	projectID, ok := projectIDParam(r)
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	if err := action(r.Context(), projectID); err != nil {
		log.Printf("Error moderating project %d: %v", projectID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Project " + verb})
}
