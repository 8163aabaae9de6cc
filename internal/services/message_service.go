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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jonboulle/clockwork"
)

type MessageService interface {
	Post(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error)
	MarkRead(ctx context.Context, chatID int, actor models.Actor) (int64, time.Time, error)
	GetMessagesByChatId(ctx context.Context, chatID, offset, limit int) ([]models.Message, error)
	GetUnreadCount(ctx context.Context, chatID int, reader models.Role) (int, error)
	GetLatestMessage(ctx context.Context, chatID int) (*models.Message, error)
}

type messageService struct {
	ChatService ChatService
	UserService UserService
	clock       clockwork.Clock
}

func NewMessageService(chatService ChatService, userService UserService, clock clockwork.Clock) *messageService {
	return &messageService{
		ChatService: chatService,
		UserService: userService,
		clock:       clock,
	}
}

// Post appends a message to a pending or active chat. The sender must be a
// participant. A client temp_id makes the insert idempotent: a duplicate
// send returns the already-persisted message.
func (ms *messageService) Post(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.ErrValidation
	}

	status, err := ms.chatStatus(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if status == models.ChatEnded {
		return nil, models.ErrChatEnded
	}

	isParticipant, err := ms.ChatService.IsParticipant(ctx, chatID, actor)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		log.Printf("Actor %s:%d tried to post to chat %d without membership", actor.Role, actor.ID, chatID)
		return nil, models.ErrForbidden
	}

	sender, err := ms.UserService.GetUserById(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("messages").
		Columns("chat_id", "sender_role", "sender_id", "username", "content", "reply_to", "temp_id", "sent_at").
		Values(chatID, actor.Role, actor.ID, sender.Username, content, replyTo, tempID, ms.clock.Now()).
		Suffix("RETURNING id, sent_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	msg := models.Message{
		ChatID:     chatID,
		SenderRole: actor.Role,
		SenderID:   &actor.ID,
		Username:   sender.Username,
		Content:    content,
		ReplyTo:    replyTo,
		TempID:     tempID,
	}
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&msg.ID, &msg.SentAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				log.Printf("Duplicate temp_id in chat %d, returning persisted message", chatID)
				return ms.findByTempID(ctx, chatID, tempID)
			case foreignKeyViolation:
				return nil, models.ErrMessageNotFound
			}
		}
		log.Printf("Error saving message to chat %d: %v", chatID, err)
		return nil, err
	}

	log.Printf("Message %d saved to chat %d by %s %d", msg.ID, chatID, actor.Role, actor.ID)
	return &msg, nil
}

const foreignKeyViolation = "23503"

func (ms *messageService) chatStatus(ctx context.Context, chatID int) (models.ChatStatus, error) {
	var status models.ChatStatus
	err := db.Pool.QueryRow(ctx, "SELECT status FROM chats WHERE id = $1", chatID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrChatNotFound
		}
		log.Printf("Error fetching status of chat %d: %v", chatID, err)
		return "", err
	}
	return status, nil
}

func (ms *messageService) findByTempID(ctx context.Context, chatID int, tempID *string) (*models.Message, error) {
	if tempID == nil {
		return nil, models.ErrMessageNotFound
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "chat_id", "sender_role", "sender_id", "username", "content", "reply_to", "is_system", "temp_id", "sent_at", "read_at").
		From("messages").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.Eq{"temp_id": *tempID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, models.ErrMessageNotFound
	}
	return &messages[0], nil
}

// MarkRead flips read_at on every unread message from the opposing role in
// one bulk update. Idempotent: a second call updates zero rows.
func (ms *messageService) MarkRead(ctx context.Context, chatID int, actor models.Actor) (int64, time.Time, error) {
	if _, err := ms.chatStatus(ctx, chatID); err != nil {
		return 0, time.Time{}, err
	}

	isParticipant, err := ms.ChatService.IsParticipant(ctx, chatID, actor)
	if err != nil {
		return 0, time.Time{}, err
	}
	if !isParticipant {
		return 0, time.Time{}, models.ErrForbidden
	}

	now := ms.clock.Now()
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("read_at", now).
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.Eq{"sender_role": actor.Role.Opposite()},
			squirrel.Eq{"read_at": nil},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, time.Time{}, err
	}

	tag, err := db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error marking messages as read in chat %d: %v", chatID, err)
		return 0, time.Time{}, err
	}

	log.Printf("Marked %d messages as read in chat %d for %s %d", tag.RowsAffected(), chatID, actor.Role, actor.ID)
	return tag.RowsAffected(), now, nil
}

// GetMessagesByChatId returns messages in creation order for conversation
// display.
func (ms *messageService) GetMessagesByChatId(ctx context.Context, chatID, offset, limit int) ([]models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "chat_id", "sender_role", "sender_id", "username", "content", "reply_to", "is_system", "temp_id", "sent_at", "read_at").
		From("messages").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("sent_at ASC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error fetching messages for chat %d: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (ms *messageService) GetUnreadCount(ctx context.Context, chatID int, reader models.Role) (int, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").
		From("messages").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.Eq{"sender_role": reader.Opposite()},
			squirrel.Eq{"read_at": nil},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var count int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread count for chat %d: %v", chatID, err)
		return 0, err
	}

	return count, nil
}

func (ms *messageService) GetLatestMessage(ctx context.Context, chatID int) (*models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "chat_id", "sender_role", "sender_id", "username", "content", "reply_to", "is_system", "temp_id", "sent_at", "read_at").
		From("messages").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("sent_at DESC", "id DESC").
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var readAt pgtype.Timestamptz

		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderRole, &msg.SenderID, &msg.Username,
			&msg.Content, &msg.ReplyTo, &msg.IsSystem, &msg.TempID, &msg.SentAt, &readAt)
		if err != nil {
			log.Printf("Error scanning message row: %v", err)
			return nil, err
		}

		if readAt.Valid {
			msg.ReadAt = &readAt.Time
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
