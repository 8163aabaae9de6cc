package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"VolunteerHub/server/internal/models"
)

func BookProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != models.RoleUser {
		http.Error(w, "Only users can book projects", http.StatusForbidden)
		return
	}

	projectID, ok := projectIDParam(r)
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	booking, err := bookingService.Book(r.Context(), projectID, actor.ID)
	if err != nil {
		log.Printf("Error booking project %d for user %d: %v", projectID, actor.ID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, booking)
}

func GetBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	bookings, err := bookingService.GetBookingsByUserId(r.Context(), actor.ID)
	if err != nil {
		log.Printf("Error listing bookings for user %d: %v", actor.ID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, bookings)
}

// SetDeposit applies a deposit status transition to the caller's booking.
// Stands in for the payment gateway callback.
func SetDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	bookingIDStr := chi.URLParam(r, "booking_id")
	bookingID, err := strconv.Atoi(bookingIDStr)
	if err != nil || bookingID <= 0 {
		http.Error(w, "Invalid booking ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := bookingService.SetDepositStatus(r.Context(), bookingID, actor.ID, models.DepositStatus(req.Status))
	if err != nil {
		log.Printf("Error updating deposit for booking %d: %v", bookingID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, booking)
}
