package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"VolunteerHub/server/internal/models"
)

func Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		log.Printf("Invalid register request: %v", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	role := models.RoleUser
	if req.Role == string(models.RoleAdmin) {
		// admin accounts require the signup token from the environment
		if adminSignupToken == "" || r.Header.Get("X-Admin-Token") != adminSignupToken {
			http.Error(w, "Admin registration is not allowed", http.StatusForbidden)
			return
		}
		role = models.RoleAdmin
	}

	ctx := r.Context()

	exists, err := userService.CheckUserExists(ctx, req.Username, req.Email)
	if err != nil {
		log.Printf("Error checking user existence: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if exists {
		http.Error(w, "User with this email or username already exists", http.StatusConflict)
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     role,
	}

	userId, err := userService.CreateUser(ctx, user, req.Password)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "User created",
		"user_id": userId,
	})
}
