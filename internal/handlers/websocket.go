package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"VolunteerHub/server/internal/appMiddleware"
	"VolunteerHub/server/internal/events"
	"VolunteerHub/server/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	actor, username, err := appMiddleware.ParseToken(tokenStr, jwtSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	log.Printf("Authenticated %s %d (%s) for websocket", actor.Role, actor.ID, username)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	clientPool.AddClient(actor, conn)
	defer clientPool.RemoveClient(actor)

	if actor.Role == models.RoleAdmin {
		if err := adminPresence.MarkOnline(r.Context(), actor.ID); err != nil {
			log.Printf("Error marking admin %d online: %v", actor.ID, err)
		}
		defer func() {
			if err := adminPresence.MarkOffline(r.Context(), actor.ID); err != nil {
				log.Printf("Error marking admin %d offline: %v", actor.ID, err)
			}
		}()
	}

	for {
		var msg struct {
			Event   string  `json:"event"`
			ChatID  int     `json:"chat_id"`
			Content string  `json:"content"`
			ReplyTo *int    `json:"reply_to"`
			TempID  *string `json:"temp_id"`
		}

		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Error reading message from %s %d: %v", actor.Role, actor.ID, err)
			break
		}

		ctx := r.Context()

		switch msg.Event {
		case "send_message":
			persisted, err := messageService.Post(ctx, msg.ChatID, actor, msg.Content, msg.ReplyTo, msg.TempID)
			if err != nil {
				log.Printf("Error saving message from %s %d to chat %d: %v", actor.Role, actor.ID, msg.ChatID, err)
				_ = conn.WriteJSON(map[string]any{
					"event": "error",
					"data":  map[string]any{"message": err.Error(), "temp_id": msg.TempID},
				})
				continue
			}

			// echo back so the sender can reconcile its optimistic render
			_ = conn.WriteJSON(map[string]any{
				"event": "message_sent",
				"data":  persisted,
			})

			emitter.NewMessage(ctx, events.NewMessageData{ChatID: msg.ChatID, Message: *persisted})

		case "mark_read":
			count, readAt, err := messageService.MarkRead(ctx, msg.ChatID, actor)
			if err != nil {
				log.Printf("Error marking chat %d as read for %s %d: %v", msg.ChatID, actor.Role, actor.ID, err)
				continue
			}
			if count > 0 {
				emitter.MessagesRead(ctx, events.MessagesReadData{
					ChatID:     msg.ChatID,
					ReaderRole: actor.Role,
					ReadAt:     readAt,
					Count:      count,
				})
			}

		case "ping":
			if actor.Role == models.RoleAdmin {
				if err := adminPresence.MarkOnline(ctx, actor.ID); err != nil {
					log.Printf("Error refreshing presence for admin %d: %v", actor.ID, err)
				}
			}
			_ = conn.WriteJSON(map[string]any{"event": "pong"})

		default:
			log.Printf("Unknown websocket event %q from %s %d", msg.Event, actor.Role, actor.ID)
		}
	}
}
