package handlers

import (
	"log"
	"net/http"
)

func GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := userService.GetUserById(r.Context(), actor.ID)
	if err != nil {
		log.Printf("Error fetching profile for %s %d: %v", actor.Role, actor.ID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
