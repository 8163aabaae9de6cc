package models

import (
	"time"
)

type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectPublished ProjectStatus = "published"
	ProjectArchived  ProjectStatus = "archived"
)

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	switch s {
	case ProjectDraft:
		return next == ProjectPublished
	case ProjectPublished:
		return next == ProjectArchived
	default:
		return false
	}
}

type Project struct {
	ID           int           `json:"id" db:"id"`
	Title        string        `json:"title" db:"title"`
	Description  string        `json:"description" db:"description"`
	City         string        `json:"city" db:"city"`
	Category     string        `json:"category" db:"category"`
	Capacity     int           `json:"capacity" db:"capacity"`
	DepositCents int           `json:"deposit_cents" db:"deposit_cents"`
	Status       ProjectStatus `json:"status" db:"status"`
	CreatedBy    int           `json:"created_by" db:"created_by"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}
