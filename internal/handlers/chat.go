package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"VolunteerHub/server/internal/events"
	"VolunteerHub/server/internal/models"
)

func chatIDParam(r *http.Request) (int, bool) {
	chatIDStr := chi.URLParam(r, "chat_id")
	chatID, err := strconv.Atoi(chatIDStr)
	if err != nil || chatID <= 0 {
		log.Printf("Invalid chat ID: %s", chatIDStr)
		return 0, false
	}
	return chatID, true
}

// CreateOrGetChat returns the caller's open support chat, creating one when
// absent. An optional first message can ride along with the request.
func CreateOrGetChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != models.RoleUser {
		http.Error(w, "Only users can open a support chat", http.StatusForbidden)
		return
	}

	var req struct {
		Content string  `json:"content"`
		TempID  *string `json:"temp_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx := r.Context()

	chat, created, err := chatService.GetOrCreateChatForUser(ctx, actor.ID)
	if err != nil {
		log.Printf("Error getting or creating chat for user %d: %v", actor.ID, err)
		respondError(w, err)
		return
	}

	if req.Content != "" {
		msg, err := messageService.Post(ctx, chat.ID, actor, req.Content, nil, req.TempID)
		if err != nil {
			log.Printf("Error posting initial message to chat %d: %v", chat.ID, err)
			respondError(w, err)
			return
		}
		chat.Messages = append(chat.Messages, *msg)
	}

	if created {
		emitter.ChatCreated(ctx, events.ChatCreatedData{
			ChatID:         chat.ID,
			UserID:         actor.ID,
			InitialMessage: req.Content,
		})
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, chat)
}

func GetChats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()

	var (
		chats []models.ChatSummary
		err   error
	)
	if actor.Role == models.RoleAdmin {
		chats, err = chatService.GetChatsForAdmin(ctx, actor.ID)
	} else {
		chats, err = chatService.GetChatsForUser(ctx, actor.ID)
	}
	if err != nil {
		log.Printf("Error listing chats for %s %d: %v", actor.Role, actor.ID, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, chats)
}

func GetChatById(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, ok := chatIDParam(r)
	if !ok {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	chat, err := chatService.GetChatById(ctx, chatID, actor)
	if err != nil {
		log.Printf("Error getting chat %d for %s %d: %v", chatID, actor.Role, actor.ID, err)
		respondError(w, err)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 50
	}

	messages, err := messageService.GetMessagesByChatId(ctx, chatID, (page-1)*limit, limit)
	if err != nil {
		log.Printf("Error getting messages for chat %d: %v", chatID, err)
		respondError(w, err)
		return
	}
	chat.Messages = messages

	unread, err := messageService.GetUnreadCount(ctx, chatID, actor.Role)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"chat":         chat,
		"messages":     messages,
		"unread_count": unread,
	})
}

func AssignChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != models.RoleAdmin {
		http.Error(w, "Only admins can take a chat", http.StatusForbidden)
		return
	}

	chatID, ok := chatIDParam(r)
	if !ok {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	sysMsg, assigned, err := chatService.Assign(ctx, chatID, actor.ID)
	if err != nil {
		log.Printf("Error assigning chat %d to admin %d: %v", chatID, actor.ID, err)
		respondError(w, err)
		return
	}

	if assigned && sysMsg != nil {
		emitter.NewMessage(ctx, events.NewMessageData{ChatID: chatID, Message: *sysMsg})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"chat_id":  chatID,
		"assigned": assigned,
	})
}

func EndChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != models.RoleAdmin {
		http.Error(w, "Only admins can end a chat", http.StatusForbidden)
		return
	}

	chatID, ok := chatIDParam(r)
	if !ok {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	sysMsg, err := chatService.End(ctx, chatID, actor.ID)
	if err != nil {
		log.Printf("Error ending chat %d by admin %d: %v", chatID, actor.ID, err)
		respondError(w, err)
		return
	}

	if sysMsg != nil {
		emitter.NewMessage(ctx, events.NewMessageData{ChatID: chatID, Message: *sysMsg})
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Chat ended"})
}

func PostMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, ok := chatIDParam(r)
	if !ok {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Content string  `json:"content"`
		ReplyTo *int    `json:"reply_to"`
		TempID  *string `json:"temp_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding message body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	msg, err := messageService.Post(ctx, chatID, actor, req.Content, req.ReplyTo, req.TempID)
	if err != nil {
		log.Printf("Error posting message to chat %d: %v", chatID, err)
		respondError(w, err)
		return
	}

	emitter.NewMessage(ctx, events.NewMessageData{ChatID: chatID, Message: *msg})

	respondJSON(w, http.StatusCreated, msg)
}

func MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, ok := chatIDParam(r)
	if !ok {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	count, readAt, err := messageService.MarkRead(ctx, chatID, actor)
	if err != nil {
		log.Printf("Error marking chat %d as read for %s %d: %v", chatID, actor.Role, actor.ID, err)
		respondError(w, err)
		return
	}

	if count > 0 {
		emitter.MessagesRead(ctx, events.MessagesReadData{
			ChatID:     chatID,
			ReaderRole: actor.Role,
			ReadAt:     readAt,
			Count:      count,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"updated": count})
}
