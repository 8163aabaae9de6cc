package events

import (
	"context"

	"VolunteerHub/server/internal/models"
)

// Broadcaster pushes an event to a single connected client.
type Broadcaster interface {
	SendTo(actor models.Actor, event string, data any) bool
}

// ParticipantSource resolves the members of a chat.
type ParticipantSource interface {
	ChatMembers(ctx context.Context, chatID int) ([]models.Actor, error)
}

// AdminDirectory lists admins currently online.
type AdminDirectory interface {
	OnlineAdmins(ctx context.Context) ([]int, error)
}

// PoolSink fans envelopes out to connected websocket clients. Chat-created
// events go to every online admin; message and read events go to the chat
// participants on the other side of the sender.
type PoolSink struct {
	pool   Broadcaster
	chats  ParticipantSource
	admins AdminDirectory
}

func NewPoolSink(pool Broadcaster, chats ParticipantSource, admins AdminDirectory) *PoolSink {
	return &PoolSink{pool: pool, chats: chats, admins: admins}
}

func (s *PoolSink) Deliver(ctx context.Context, key string, env Envelope) error {
	switch data := env.Data.(type) {
	case ChatCreatedData:
		ids, err := s.admins.OnlineAdmins(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			s.pool.SendTo(models.Actor{Role: models.RoleAdmin, ID: id}, key, env)
		}
		return nil

	case NewMessageData:
		return s.sendToRole(ctx, data.ChatID, key, env, data.Message.SenderRole.Opposite(), data.Message.IsSystem)

	case MessagesReadData:
		return s.sendToRole(ctx, data.ChatID, key, env, data.ReaderRole.Opposite(), false)
	}
	return nil
}

// sendToRole delivers to chat members with the given role; system messages
// go to every member.
func (s *PoolSink) sendToRole(ctx context.Context, chatID int, key string, env Envelope, role models.Role, toAll bool) error {
	members, err := s.chats.ChatMembers(ctx, chatID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if toAll || m.Role == role {
			s.pool.SendTo(m, key, env)
		}
	}
	return nil
}
