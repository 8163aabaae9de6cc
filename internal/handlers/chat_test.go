package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolunteerHub/server/internal/appMiddleware"
	"VolunteerHub/server/internal/events"
	"VolunteerHub/server/internal/models"
)

type fakeChatService struct {
	getOrCreate func(ctx context.Context, userID int) (*models.Chat, bool, error)
	assign      func(ctx context.Context, chatID, adminID int) (*models.Message, bool, error)
	end         func(ctx context.Context, chatID, adminID int) (*models.Message, error)
	getByID     func(ctx context.Context, chatID int, actor models.Actor) (*models.Chat, error)
}

func (f *fakeChatService) GetOrCreateChatForUser(ctx context.Context, userID int) (*models.Chat, bool, error) {
	return f.getOrCreate(ctx, userID)
}

func (f *fakeChatService) GetChatById(ctx context.Context, chatID int, actor models.Actor) (*models.Chat, error) {
	return f.getByID(ctx, chatID, actor)
}

func (f *fakeChatService) GetChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	return nil, nil
}

func (f *fakeChatService) GetChatsForAdmin(ctx context.Context, adminID int) ([]models.ChatSummary, error) {
	return nil, nil
}

func (f *fakeChatService) Assign(ctx context.Context, chatID, adminID int) (*models.Message, bool, error) {
	return f.assign(ctx, chatID, adminID)
}

func (f *fakeChatService) End(ctx context.Context, chatID, adminID int) (*models.Message, error) {
	return f.end(ctx, chatID, adminID)
}

func (f *fakeChatService) IsParticipant(ctx context.Context, chatID int, actor models.Actor) (bool, error) {
	return false, nil
}

func (f *fakeChatService) ChatMembers(ctx context.Context, chatID int) ([]models.Actor, error) {
	return nil, nil
}

type fakeMessageService struct {
	post     func(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error)
	markRead func(ctx context.Context, chatID int, actor models.Actor) (int64, time.Time, error)
}

func (f *fakeMessageService) Post(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error) {
	return f.post(ctx, chatID, actor, content, replyTo, tempID)
}

func (f *fakeMessageService) MarkRead(ctx context.Context, chatID int, actor models.Actor) (int64, time.Time, error) {
	return f.markRead(ctx, chatID, actor)
}

func (f *fakeMessageService) GetMessagesByChatId(ctx context.Context, chatID, offset, limit int) ([]models.Message, error) {
	return nil, nil
}

func (f *fakeMessageService) GetUnreadCount(ctx context.Context, chatID int, reader models.Role) (int, error) {
	return 0, nil
}

func (f *fakeMessageService) GetLatestMessage(ctx context.Context, chatID int) (*models.Message, error) {
	return nil, nil
}

type recordingSink struct {
	envelopes []events.Envelope
}

func (s *recordingSink) Deliver(ctx context.Context, key string, env events.Envelope) error {
	s.envelopes = append(s.envelopes, env)
	return nil
}

func newChatRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/api/chats", CreateOrGetChat)
	r.Post("/api/chats/{chat_id}/messages", PostMessage)
	r.Post("/api/chats/{chat_id}/read", MarkRead)
	r.Post("/api/chats/{chat_id}/assign", AssignChat)
	r.Post("/api/chats/{chat_id}/end", EndChat)
	return r
}

func doRequest(t *testing.T, router chi.Router, actor models.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(appMiddleware.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAssignChatRejectsNonAdmin(t *testing.T) {
	Init(Deps{Emitter: events.NewEmitter("test")})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleUser, ID: 7},
		http.MethodPost, "/api/chats/1/assign", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAssignChatConflictOnOtherAdmin(t *testing.T) {
	Init(Deps{
		ChatService: &fakeChatService{
			assign: func(ctx context.Context, chatID, adminID int) (*models.Message, bool, error) {
				return nil, false, models.ErrAlreadyAssigned
			},
		},
		Emitter: events.NewEmitter("test"),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleAdmin, ID: 3},
		http.MethodPost, "/api/chats/1/assign", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssignChatEmitsSystemMessage(t *testing.T) {
	sink := &recordingSink{}
	sysMsg := models.Message{ID: 10, ChatID: 1, SenderRole: models.RoleSystem, IsSystem: true, Content: "ann has joined the chat"}

	Init(Deps{
		ChatService: &fakeChatService{
			assign: func(ctx context.Context, chatID, adminID int) (*models.Message, bool, error) {
				return &sysMsg, true, nil
			},
		},
		Emitter: events.NewEmitter("test", sink),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleAdmin, ID: 3},
		http.MethodPost, "/api/chats/1/assign", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.envelopes, 1)
	assert.Equal(t, events.TypeNewMessage, sink.envelopes[0].Meta.Type)
}

func TestAssignChatIdempotentRetry(t *testing.T) {
	sink := &recordingSink{}
	Init(Deps{
		ChatService: &fakeChatService{
			assign: func(ctx context.Context, chatID, adminID int) (*models.Message, bool, error) {
				// same admin retry: success, nothing newly assigned
				return nil, false, nil
			},
		},
		Emitter: events.NewEmitter("test", sink),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleAdmin, ID: 3},
		http.MethodPost, "/api/chats/1/assign", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.envelopes)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["assigned"])
}

func TestPostMessageForbiddenForNonParticipant(t *testing.T) {
	Init(Deps{
		MessageService: &fakeMessageService{
			post: func(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error) {
				return nil, models.ErrForbidden
			},
		},
		Emitter: events.NewEmitter("test"),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleUser, ID: 99},
		http.MethodPost, "/api/chats/1/messages", map[string]string{"content": "hi"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageEchoesTempID(t *testing.T) {
	Init(Deps{
		MessageService: &fakeMessageService{
			post: func(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error) {
				id := actor.ID
				return &models.Message{
					ID: 5, ChatID: chatID, SenderRole: actor.Role, SenderID: &id,
					Content: content, TempID: tempID, SentAt: time.Now(),
				}, nil
			},
		},
		Emitter: events.NewEmitter("test"),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleUser, ID: 7},
		http.MethodPost, "/api/chats/1/messages",
		map[string]string{"content": "hello", "temp_id": "tmp-123"})

	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.NotNil(t, msg.TempID)
	assert.Equal(t, "tmp-123", *msg.TempID)
}

func TestPostMessageRejectsEmptyContent(t *testing.T) {
	Init(Deps{
		MessageService: &fakeMessageService{
			post: func(ctx context.Context, chatID int, actor models.Actor, content string, replyTo *int, tempID *string) (*models.Message, error) {
				return nil, models.ErrValidation
			},
		},
		Emitter: events.NewEmitter("test"),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleUser, ID: 7},
		http.MethodPost, "/api/chats/1/messages", map[string]string{"content": "   "})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMarkReadIdempotentSecondCall(t *testing.T) {
	sink := &recordingSink{}
	calls := 0
	Init(Deps{
		MessageService: &fakeMessageService{
			markRead: func(ctx context.Context, chatID int, actor models.Actor) (int64, time.Time, error) {
				calls++
				if calls == 1 {
					return 3, time.Now(), nil
				}
				return 0, time.Now(), nil
			},
		},
		Emitter: events.NewEmitter("test", sink),
	})
	router := newChatRouter()

	actor := models.Actor{Role: models.RoleAdmin, ID: 3}

	rec := doRequest(t, router, actor, http.MethodPost, "/api/chats/1/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["updated"])

	rec = doRequest(t, router, actor, http.MethodPost, "/api/chats/1/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["updated"])

	// only the first call had unread rows, so only one read event fires
	assert.Len(t, sink.envelopes, 1)
	assert.Equal(t, events.TypeMessagesRead, sink.envelopes[0].Meta.Type)
}

func TestCreateOrGetChatRejectsAdmin(t *testing.T) {
	Init(Deps{Emitter: events.NewEmitter("test")})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleAdmin, ID: 3},
		http.MethodPost, "/api/chats", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateOrGetChatEmitsOnlyOnCreation(t *testing.T) {
	sink := &recordingSink{}
	created := true
	Init(Deps{
		ChatService: &fakeChatService{
			getOrCreate: func(ctx context.Context, userID int) (*models.Chat, bool, error) {
				chat := &models.Chat{ID: 1, UserID: userID, Status: models.ChatPending}
				wasCreated := created
				created = false
				return chat, wasCreated, nil
			},
		},
		Emitter: events.NewEmitter("test", sink),
	})
	router := newChatRouter()

	actor := models.Actor{Role: models.RoleUser, ID: 7}

	rec := doRequest(t, router, actor, http.MethodPost, "/api/chats", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, sink.envelopes, 1)

	rec = doRequest(t, router, actor, http.MethodPost, "/api/chats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sink.envelopes, 1)
}

func TestEndChatMapsForbidden(t *testing.T) {
	Init(Deps{
		ChatService: &fakeChatService{
			end: func(ctx context.Context, chatID, adminID int) (*models.Message, error) {
				return nil, models.ErrForbidden
			},
		},
		Emitter: events.NewEmitter("test"),
	})
	router := newChatRouter()

	rec := doRequest(t, router, models.Actor{Role: models.RoleAdmin, ID: 4},
		http.MethodPost, "/api/chats/1/end", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
