package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"VolunteerHub/server/internal/appMiddleware"
	"VolunteerHub/server/internal/events"
	"VolunteerHub/server/internal/models"
	"VolunteerHub/server/internal/pool"
	"VolunteerHub/server/internal/presence"
	"VolunteerHub/server/internal/services"
)

var (
	userService      services.UserService
	chatService      services.ChatService
	messageService   services.MessageService
	projectService   services.ProjectService
	bookingService   services.BookingService
	emitter          *events.Emitter
	clientPool       pool.ClientPool
	adminPresence    *presence.Registry
	jwtSecret        []byte
	adminSignupToken string
)

type Deps struct {
	UserService      services.UserService
	ChatService      services.ChatService
	MessageService   services.MessageService
	ProjectService   services.ProjectService
	BookingService   services.BookingService
	Emitter          *events.Emitter
	ClientPool       pool.ClientPool
	AdminPresence    *presence.Registry
	JWTSecret        []byte
	AdminSignupToken string
}

// Init wires the handler package to its collaborators. Must be called once
// before the router is mounted.
func Init(d Deps) {
	userService = d.UserService
	chatService = d.ChatService
	messageService = d.MessageService
	projectService = d.ProjectService
	bookingService = d.BookingService
	emitter = d.Emitter
	clientPool = d.ClientPool
	adminPresence = d.AdminPresence
	jwtSecret = d.JWTSecret
	adminSignupToken = d.AdminSignupToken
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyAssigned),
		errors.Is(err, models.ErrChatEnded),
		errors.Is(err, models.ErrAlreadyBooked),
		errors.Is(err, models.ErrProjectFull),
		errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, models.ErrChatNotFound),
		errors.Is(err, models.ErrMessageNotFound),
		errors.Is(err, models.ErrProjectNotFound),
		errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		status = http.StatusUnprocessableEntity
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	respondJSON(w, status, map[string]string{"error": message})
}

func actorFrom(r *http.Request) (models.Actor, bool) {
	return appMiddleware.ActorFromContext(r.Context())
}
