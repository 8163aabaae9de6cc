package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"VolunteerHub/server/internal/db"
	"VolunteerHub/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type ProjectService interface {
	CreateProject(ctx context.Context, p *models.Project) (int, error)
	GetProjectById(ctx context.Context, id int) (*models.Project, error)
	ListPublished(ctx context.Context, city, category string, offset, limit int) ([]models.Project, error)
	Publish(ctx context.Context, id int) error
	Archive(ctx context.Context, id int) error
}

type projectService struct{}

func NewProjectService() *projectService {
	return &projectService{}
}

func (ps *projectService) CreateProject(ctx context.Context, p *models.Project) (int, error) {
	if strings.TrimSpace(p.Title) == "" || p.Capacity <= 0 || p.DepositCents < 0 {
		return 0, models.ErrValidation
	}

	now := time.Now()
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("projects").
		Columns("title", "description", "city", "category", "capacity", "deposit_cents", "status", "created_by", "created_at", "updated_at").
		Values(p.Title, p.Description, p.City, p.Category, p.Capacity, p.DepositCents, models.ProjectDraft, p.CreatedBy, now, now).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var projectID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&projectID)
	if err != nil {
		log.Printf("Error creating project: %v", err)
		return 0, err
	}

	log.Printf("Project created: %s (ID: %d)", p.Title, projectID)
	return projectID, nil
}

func (ps *projectService) GetProjectById(ctx context.Context, id int) (*models.Project, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "title", "description", "city", "category", "capacity", "deposit_cents", "status", "created_by", "created_at", "updated_at").
		From("projects").
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var p models.Project
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(
		&p.ID, &p.Title, &p.Description, &p.City, &p.Category,
		&p.Capacity, &p.DepositCents, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProjectNotFound
		}
		log.Printf("Error fetching project %d: %v", id, err)
		return nil, err
	}

	return &p, nil
}

func (ps *projectService) ListPublished(ctx context.Context, city, category string, offset, limit int) ([]models.Project, error) {
	pred := squirrel.And{squirrel.Eq{"status": models.ProjectPublished}}
	if city != "" {
		pred = append(pred, squirrel.Eq{"city": city})
	}
	if category != "" {
		pred = append(pred, squirrel.Eq{"category": category})
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "title", "description", "city", "category", "capacity", "deposit_cents", "status", "created_by", "created_at", "updated_at").
		From("projects").
		Where(pred).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error listing projects: %v", err)
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.City, &p.Category,
			&p.Capacity, &p.DepositCents, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			log.Printf("Error scanning project row: %v", err)
			return nil, err
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

func (ps *projectService) Publish(ctx context.Context, id int) error {
	return ps.transition(ctx, id, models.ProjectDraft, models.ProjectPublished)
}

func (ps *projectService) Archive(ctx context.Context, id int) error {
	return ps.transition(ctx, id, models.ProjectPublished, models.ProjectArchived)
}

// transition performs a conditional status update so a lost race surfaces
// as ErrInvalidTransition rather than silently re-applying.
func (ps *projectService) transition(ctx context.Context, id int, from, to models.ProjectStatus) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("projects").
		Set("status", to).
		Set("updated_at", time.Now()).
		Where(squirrel.And{
			squirrel.Eq{"id": id},
			squirrel.Eq{"status": from},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	tag, err := db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error moving project %d to %s: %v", id, to, err)
		return err
	}

	if tag.RowsAffected() == 0 {
		if _, err := ps.GetProjectById(ctx, id); err != nil {
			return err
		}
		return models.ErrInvalidTransition
	}

	log.Printf("Project %d moved to %s", id, to)
	return nil
}
