package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"VolunteerHub/server/internal/models"
	"VolunteerHub/server/internal/utils"
)

const (
	maxFailedAttempts = 5
	lockoutDuration   = 5 * time.Minute
	tokenLifetime     = 24 * time.Hour
)

func Login(w http.ResponseWriter, r *http.Request) {
	var loginData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	err := json.NewDecoder(r.Body).Decode(&loginData)
	if err != nil || loginData.Email == "" || loginData.Password == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	user, err := userService.GetUserByEmail(ctx, loginData.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Printf("User with email %s not found", loginData.Email)
			respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "User not found"})
			return
		}
		log.Printf("Error fetching user by email: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		return
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		log.Printf("Account is locked until %v for user %d", user.LockedUntil, user.ID)
		respondJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "Account is temporarily locked due to multiple failed login attempts",
		})
		return
	}

	if err := utils.CheckPasswordHash(loginData.Password, user.PasswordHash); err != nil {
		log.Printf("Password verification failed for user %d", user.ID)

		updatedUser, err := userService.IncrementFailedLoginAttempts(ctx, user.ID)
		if err != nil {
			log.Printf("Error incrementing failed login attempts for user %d: %v", user.ID, err)
			respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
			return
		}

		if updatedUser.FailedAttempts >= maxFailedAttempts {
			if err := userService.LockAccount(ctx, user.ID, lockoutDuration); err != nil {
				log.Printf("Error locking account for user %d: %v", user.ID, err)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
				return
			}
		}

		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}

	if err := userService.ResetFailedLoginAttempts(ctx, user.ID); err != nil {
		log.Printf("Error resetting failed attempts for user %d: %v", user.ID, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      time.Now().Add(tokenLifetime).Unix(),
	})

	tokenStr, err := token.SignedString(jwtSecret)
	if err != nil {
		log.Printf("Error signing token for user %d: %v", user.ID, err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		return
	}

	log.Printf("User %d logged in", user.ID)
	respondJSON(w, http.StatusOK, map[string]any{
		"token": tokenStr,
		"user":  user,
	})
}
