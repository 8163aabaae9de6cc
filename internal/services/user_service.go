package services

import (
	"context"
	"errors"
	"log"
	"time"

	"VolunteerHub/server/internal/db"
	"VolunteerHub/server/internal/models"
	"VolunteerHub/server/internal/utils"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type UserService interface {
	CheckUserExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User, password string) (int, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserById(ctx context.Context, id int) (*models.User, error)
	IncrementFailedLoginAttempts(ctx context.Context, id int) (*models.User, error)
	ResetFailedLoginAttempts(ctx context.Context, id int) error
	LockAccount(ctx context.Context, id int, d time.Duration) error
}

type userService struct{}

func NewUserService() *userService {
	return &userService{}
}

func (us *userService) CheckUserExists(ctx context.Context, username, email string) (bool, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": username},
			squirrel.Eq{"email": email},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return false, err
	}

	var count int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error checking user existence: %v", err)
		return false, err
	}

	return count > 0, nil
}

func (us *userService) CreateUser(ctx context.Context, user *models.User, password string) (int, error) {
	if !user.Role.Valid() {
		return 0, models.ErrValidation
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return 0, err
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("users").
		Columns("username", "email", "password_hash", "role").
		Values(user.Username, user.Email, hashedPassword, user.Role).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var userId int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&userId)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		return 0, err
	}

	log.Printf("User created: %s (ID: %d, role: %s)", user.Username, userId, user.Role)
	return userId, nil
}

func (us *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return us.getUser(ctx, squirrel.Eq{"email": email})
}

func (us *userService) GetUserById(ctx context.Context, id int) (*models.User, error) {
	return us.getUser(ctx, squirrel.Eq{"id": id})
}

func (us *userService) getUser(ctx context.Context, pred squirrel.Eq) (*models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "username", "email", "password_hash", "role", "failed_attempts", "locked_until", "created_at").
		From("users").
		Where(pred)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var user models.User
	var lockedUntil pgtype.Timestamptz
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.FailedAttempts, &lockedUntil, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error fetching user: %v", err)
		return nil, err
	}

	if lockedUntil.Valid {
		user.LockedUntil = &lockedUntil.Time
	}

	return &user, nil
}

func (us *userService) IncrementFailedLoginAttempts(ctx context.Context, id int) (*models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("users").
		Set("failed_attempts", squirrel.Expr("failed_attempts + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_attempts")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var attempts int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error incrementing failed attempts for user %d: %v", id, err)
		return nil, err
	}

	return &models.User{ID: id, FailedAttempts: attempts}, nil
}

func (us *userService) ResetFailedLoginAttempts(ctx context.Context, id int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("users").
		Set("failed_attempts", 0).
		Set("locked_until", nil).
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error resetting failed attempts for user %d: %v", id, err)
	}
	return err
}

func (us *userService) LockAccount(ctx context.Context, id int, d time.Duration) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("users").
		Set("locked_until", time.Now().Add(d)).
		Set("failed_attempts", 0).
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error locking account for user %d: %v", id, err)
		return err
	}

	log.Printf("Account %d locked for %s", id, d)
	return nil
}
