package models

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrChatNotFound      = errors.New("chat not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrForbidden         = errors.New("actor is not a participant")
	ErrAlreadyAssigned   = errors.New("chat is already assigned to another admin")
	ErrChatEnded         = errors.New("chat has ended")
	ErrValidation        = errors.New("validation failed")
	ErrAlreadyBooked     = errors.New("user has already booked this project")
	ErrProjectFull       = errors.New("project has no remaining capacity")
	ErrInvalidTransition = errors.New("invalid status transition")
)
