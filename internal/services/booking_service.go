package services

import (
	"context"
	"errors"
	"log"
	"time"

	"VolunteerHub/server/internal/db"
	"VolunteerHub/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type BookingService interface {
	Book(ctx context.Context, projectID, userID int) (*models.Booking, error)
	GetBookingById(ctx context.Context, id int) (*models.Booking, error)
	GetBookingsByUserId(ctx context.Context, userID int) ([]models.Booking, error)
	SetDepositStatus(ctx context.Context, bookingID, userID int, next models.DepositStatus) (*models.Booking, error)
}

type bookingService struct{}

func NewBookingService() *bookingService {
	return &bookingService{}
}

// Book reserves a spot on a published project. The project row is locked
// for the duration of the transaction so the capacity check and the insert
// are atomic under concurrent bookings.
func (bs *bookingService) Book(ctx context.Context, projectID, userID int) (*models.Booking, error) {
	var booking models.Booking

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		var status models.ProjectStatus
		var capacity int
		err := tx.QueryRow(ctx,
			"SELECT status, capacity FROM projects WHERE id = $1 FOR UPDATE", projectID).
			Scan(&status, &capacity)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrProjectNotFound
		}
		if err != nil {
			return err
		}
		if status != models.ProjectPublished {
			return models.ErrValidation
		}

		var taken int
		err = tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM bookings WHERE project_id = $1 AND deposit_status <> 'refunded'", projectID).
			Scan(&taken)
		if err != nil {
			return err
		}
		if taken >= capacity {
			return models.ErrProjectFull
		}

		now := time.Now()
		insert := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert("bookings").
			Columns("project_id", "user_id", "deposit_status", "created_at", "updated_at").
			Values(projectID, userID, models.DepositPending, now, now).
			Suffix("RETURNING id, created_at, updated_at")
		sqlStr, args, err := insert.ToSql()
		if err != nil {
			return err
		}

		booking = models.Booking{
			ProjectID:     projectID,
			UserID:        userID,
			DepositStatus: models.DepositPending,
		}
		return tx.QueryRow(ctx, sqlStr, args...).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrAlreadyBooked
		}
		log.Printf("Error booking project %d for user %d: %v", projectID, userID, err)
		return nil, err
	}

	log.Printf("Booking %d created: project %d, user %d", booking.ID, projectID, userID)
	return &booking, nil
}

func (bs *bookingService) GetBookingById(ctx context.Context, id int) (*models.Booking, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "project_id", "user_id", "deposit_status", "created_at", "updated_at").
		From("bookings").
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var b models.Booking
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(
		&b.ID, &b.ProjectID, &b.UserID, &b.DepositStatus, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		log.Printf("Error fetching booking %d: %v", id, err)
		return nil, err
	}

	return &b, nil
}

func (bs *bookingService) GetBookingsByUserId(ctx context.Context, userID int) ([]models.Booking, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "project_id", "user_id", "deposit_status", "created_at", "updated_at").
		From("bookings").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error listing bookings for user %d: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(&b.ID, &b.ProjectID, &b.UserID, &b.DepositStatus, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			log.Printf("Error scanning booking row: %v", err)
			return nil, err
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// SetDepositStatus applies a deposit transition as a conditional update
// keyed on the current status, mirroring what a gateway callback would do.
func (bs *bookingService) SetDepositStatus(ctx context.Context, bookingID, userID int, next models.DepositStatus) (*models.Booking, error) {
	booking, err := bs.GetBookingById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, models.ErrForbidden
	}
	if !booking.DepositStatus.CanTransitionTo(next) {
		return nil, models.ErrInvalidTransition
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("bookings").
		Set("deposit_status", next).
		Set("updated_at", time.Now()).
		Where(squirrel.And{
			squirrel.Eq{"id": bookingID},
			squirrel.Eq{"deposit_status": booking.DepositStatus},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	tag, err := db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error updating deposit status for booking %d: %v", bookingID, err)
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrInvalidTransition
	}

	log.Printf("Booking %d deposit moved to %s", bookingID, next)
	return bs.GetBookingById(ctx, bookingID)
}
