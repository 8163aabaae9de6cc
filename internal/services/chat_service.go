package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"VolunteerHub/server/internal/db"
	"VolunteerHub/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
)

const uniqueViolation = "23505"

type ChatService interface {
	GetOrCreateChatForUser(ctx context.Context, userID int) (*models.Chat, bool, error)
	GetChatById(ctx context.Context, chatID int, actor models.Actor) (*models.Chat, error)
	GetChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	GetChatsForAdmin(ctx context.Context, adminID int) ([]models.ChatSummary, error)
	Assign(ctx context.Context, chatID, adminID int) (*models.Message, bool, error)
	End(ctx context.Context, chatID, adminID int) (*models.Message, error)
	IsParticipant(ctx context.Context, chatID int, actor models.Actor) (bool, error)
	ChatMembers(ctx context.Context, chatID int) ([]models.Actor, error)
}

type chatService struct {
	UserService UserService
	clock       clockwork.Clock
}

func NewChatService(userService UserService, clock clockwork.Clock) *chatService {
	return &chatService{
		UserService: userService,
		clock:       clock,
	}
}

// GetOrCreateChatForUser returns the user's open chat, creating it in
// pending status together with its user participant when absent. The
// partial unique index on open chats closes the concurrent first-contact
// race: the loser of the insert re-reads and returns the winner's chat.
func (cs *chatService) GetOrCreateChatForUser(ctx context.Context, userID int) (*models.Chat, bool, error) {
	chat, err := cs.findOpenChat(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if chat != nil {
		return chat, false, nil
	}

	var chatID int
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		now := cs.clock.Now()

		insertChat := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert("chats").
			Columns("user_id", "status", "created_at", "updated_at").
			Values(userID, models.ChatPending, now, now).
			Suffix("RETURNING id")
		sqlStr, args, err := insertChat.ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&chatID); err != nil {
			return err
		}

		insertParticipant := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert("chat_participants").
			Columns("chat_id", "user_id", "joined_at").
			Values(chatID, userID, now)
		sqlStr, args, err = insertParticipant.ToSql()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, sqlStr, args...)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			log.Printf("Lost chat-creation race for user %d, returning existing chat", userID)
			chat, err := cs.findOpenChat(ctx, userID)
			if err != nil {
				return nil, false, err
			}
			if chat == nil {
				return nil, false, models.ErrChatNotFound
			}
			return chat, false, nil
		}
		log.Printf("Error creating chat for user %d: %v", userID, err)
		return nil, false, err
	}

	log.Printf("Chat %d created for user %d", chatID, userID)
	chat, err = cs.loadChat(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

// findOpenChat returns the user's non-ended chat with messages and
// participants eagerly loaded, or nil when none exists.
func (cs *chatService) findOpenChat(ctx context.Context, userID int) (*models.Chat, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id").
		From("chats").
		Where(squirrel.And{
			squirrel.Eq{"user_id": userID},
			squirrel.NotEq{"status": models.ChatEnded},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var chatID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		log.Printf("Error finding open chat for user %d: %v", userID, err)
		return nil, err
	}

	return cs.loadChat(ctx, chatID)
}

func (cs *chatService) loadChat(ctx context.Context, chatID int) (*models.Chat, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "user_id", "admin_id", "status", "created_at", "updated_at").
		From("chats").
		Where(squirrel.Eq{"id": chatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var chat models.Chat
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(
		&chat.ID, &chat.UserID, &chat.AdminID, &chat.Status, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrChatNotFound
		}
		log.Printf("Error loading chat %d: %v", chatID, err)
		return nil, err
	}

	chat.Participants, err = cs.participants(ctx, chatID)
	if err != nil {
		return nil, err
	}

	chat.Messages, err = cs.messages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	return &chat, nil
}

func (cs *chatService) participants(ctx context.Context, chatID int) ([]models.Participant, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "chat_id", "user_id", "admin_id", "joined_at").
		From("chat_participants").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("joined_at ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting participants for chat %d: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.ChatID, &p.UserID, &p.AdminID, &p.JoinedAt); err != nil {
			log.Printf("Error scanning participant row: %v", err)
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (cs *chatService) messages(ctx context.Context, chatID int) ([]models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "chat_id", "sender_role", "sender_id", "username", "content", "reply_to", "is_system", "temp_id", "sent_at", "read_at").
		From("messages").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("sent_at ASC", "id ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting messages for chat %d: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetChatById returns the chat with messages and participants, guarded by
// membership.
func (cs *chatService) GetChatById(ctx context.Context, chatID int, actor models.Actor) (*models.Chat, error) {
	isParticipant, err := cs.IsParticipant(ctx, chatID, actor)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		log.Printf("Actor %s:%d is not a participant of chat %d", actor.Role, actor.ID, chatID)
		return nil, models.ErrForbidden
	}

	return cs.loadChat(ctx, chatID)
}

func (cs *chatService) GetChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	return cs.summaries(ctx, squirrel.Eq{"chats.user_id": userID}, models.RoleUser)
}

// GetChatsForAdmin returns the admin inbox: every pending chat plus the
// chats assigned to this admin.
func (cs *chatService) GetChatsForAdmin(ctx context.Context, adminID int) ([]models.ChatSummary, error) {
	return cs.summaries(ctx, squirrel.Or{
		squirrel.Eq{"chats.status": models.ChatPending},
		squirrel.Eq{"chats.admin_id": adminID},
	}, models.RoleAdmin)
}

func (cs *chatService) summaries(ctx context.Context, pred squirrel.Sqlizer, viewer models.Role) ([]models.ChatSummary, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("chats.id", "chats.user_id", "chats.admin_id", "chats.status",
			"chats.created_at", "chats.updated_at",
			"messages.content AS last_message_content",
			"messages.sent_at AS last_message_sent_at").
		From("chats").
		LeftJoin("messages ON chats.id = messages.chat_id AND messages.sent_at = (" +
			"SELECT MAX(sent_at) FROM messages WHERE messages.chat_id = chats.id)").
		Where(pred).
		OrderBy("messages.sent_at DESC NULLS LAST", "chats.created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error listing chats: %v", err)
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ChatSummary
	for rows.Next() {
		var s models.ChatSummary
		err := rows.Scan(&s.ID, &s.UserID, &s.AdminID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
			&s.LastMessageContent, &s.LastMessageSentAt)
		if err != nil {
			log.Printf("Error scanning chat row: %v", err)
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// unread counts are always computed on read, never cached
	for i := range summaries {
		count, err := cs.unreadCount(ctx, summaries[i].ID, viewer)
		if err != nil {
			return nil, err
		}
		summaries[i].UnreadCount = count
	}

	return summaries, nil
}

func (cs *chatService) unreadCount(ctx context.Context, chatID int, viewer models.Role) (int, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").
		From("messages").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.Eq{"sender_role": viewer.Opposite()},
			squirrel.Eq{"read_at": nil},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		log.Printf("Error getting unread count for chat %d: %v", chatID, err)
		return 0, err
	}
	return count, nil
}

// Assign moves a pending chat to active and attaches the admin. The flip is
// a single conditional update, so two concurrent assignments cannot both
// win. Re-assigning the same admin is an idempotent no-op; a different
// admin gets ErrAlreadyAssigned. Returns the system message and whether
// this call performed the assignment.
func (cs *chatService) Assign(ctx context.Context, chatID, adminID int) (*models.Message, bool, error) {
	admin, err := cs.UserService.GetUserById(ctx, adminID)
	if err != nil {
		return nil, false, err
	}

	var sysMsg *models.Message
	assigned := false

	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		now := cs.clock.Now()

		update := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Update("chats").
			Set("admin_id", adminID).
			Set("status", models.ChatActive).
			Set("updated_at", now).
			Where(squirrel.And{
				squirrel.Eq{"id": chatID},
				squirrel.Eq{"admin_id": nil},
				squirrel.Eq{"status": models.ChatPending},
			})
		sqlStr, args, err := update.ToSql()
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, sqlStr, args...)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var currentAdmin *int
			var status models.ChatStatus
			err := tx.QueryRow(ctx, "SELECT admin_id, status FROM chats WHERE id = $1", chatID).
				Scan(&currentAdmin, &status)
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrChatNotFound
			}
			if err != nil {
				return err
			}
			if currentAdmin != nil && *currentAdmin == adminID {
				// idempotent retry
				return nil
			}
			if currentAdmin != nil {
				return models.ErrAlreadyAssigned
			}
			return models.ErrChatEnded
		}
		assigned = true

		insertParticipant := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert("chat_participants").
			Columns("chat_id", "admin_id", "joined_at").
			Values(chatID, adminID, now)
		sqlStr, args, err = insertParticipant.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
			return err
		}

		content := fmt.Sprintf("%s has joined the chat", admin.Username)
		sysMsg, err = insertSystemMessage(ctx, tx, chatID, content, now)
		return err
	})
	if err != nil {
		log.Printf("Error assigning chat %d to admin %d: %v", chatID, adminID, err)
		return nil, false, err
	}

	if assigned {
		log.Printf("Chat %d assigned to admin %d", chatID, adminID)
	}
	return sysMsg, assigned, nil
}

// End closes an active chat. Only the assigned admin may end it; ended is
// terminal.
func (cs *chatService) End(ctx context.Context, chatID, adminID int) (*models.Message, error) {
	admin, err := cs.UserService.GetUserById(ctx, adminID)
	if err != nil {
		return nil, err
	}

	var sysMsg *models.Message
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		now := cs.clock.Now()

		update := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Update("chats").
			Set("status", models.ChatEnded).
			Set("updated_at", now).
			Where(squirrel.And{
				squirrel.Eq{"id": chatID},
				squirrel.Eq{"admin_id": adminID},
				squirrel.Eq{"status": models.ChatActive},
			})
		sqlStr, args, err := update.ToSql()
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, sqlStr, args...)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var currentAdmin *int
			var status models.ChatStatus
			err := tx.QueryRow(ctx, "SELECT admin_id, status FROM chats WHERE id = $1", chatID).
				Scan(&currentAdmin, &status)
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrChatNotFound
			}
			if err != nil {
				return err
			}
			if status == models.ChatEnded {
				return models.ErrChatEnded
			}
			return models.ErrForbidden
		}

		content := fmt.Sprintf("%s has ended the chat", admin.Username)
		sysMsg, err = insertSystemMessage(ctx, tx, chatID, content, cs.clock.Now())
		return err
	})
	if err != nil {
		log.Printf("Error ending chat %d by admin %d: %v", chatID, adminID, err)
		return nil, err
	}

	log.Printf("Chat %d ended by admin %d", chatID, adminID)
	return sysMsg, nil
}

func insertSystemMessage(ctx context.Context, tx pgx.Tx, chatID int, content string, sentAt time.Time) (*models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("messages").
		Columns("chat_id", "sender_role", "content", "is_system", "sent_at").
		Values(chatID, models.RoleSystem, content, true, sentAt).
		Suffix("RETURNING id, sent_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ChatID:     chatID,
		SenderRole: models.RoleSystem,
		Content:    content,
		IsSystem:   true,
	}
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&msg.ID, &msg.SentAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

// IsParticipant is the authorization guard for every chat mutation.
func (cs *chatService) IsParticipant(ctx context.Context, chatID int, actor models.Actor) (bool, error) {
	if !actor.Role.Valid() {
		return false, nil
	}

	column := "user_id"
	if actor.Role == models.RoleAdmin {
		column = "admin_id"
	}

	query := `
        SELECT EXISTS (
            SELECT 1
            FROM chat_participants
            WHERE chat_id = $1 AND ` + column + ` = $2
        )
    `

	var exists bool
	err := db.Pool.QueryRow(ctx, query, chatID, actor.ID).Scan(&exists)
	if err != nil {
		log.Printf("Error checking if %s %d is a participant of chat %d: %v", actor.Role, actor.ID, chatID, err)
		return false, err
	}

	return exists, nil
}

func (cs *chatService) ChatMembers(ctx context.Context, chatID int) ([]models.Actor, error) {
	participants, err := cs.participants(ctx, chatID)
	if err != nil {
		return nil, err
	}

	actors := make([]models.Actor, 0, len(participants))
	for _, p := range participants {
		actors = append(actors, p.Actor())
	}
	return actors, nil
}
