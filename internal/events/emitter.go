package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Sink delivers an envelope to one transport. Delivery is best-effort and
// at-least-once; consumers must tolerate duplicates.
type Sink interface {
	Deliver(ctx context.Context, key string, env Envelope) error
}

// Emitter constructs event envelopes and hands them to every registered
// sink. A failing sink is logged and never fails the triggering request.
type Emitter struct {
	producer string
	sinks    []Sink
}

func NewEmitter(producer string, sinks ...Sink) *Emitter {
	return &Emitter{producer: producer, sinks: sinks}
}

func (e *Emitter) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

func (e *Emitter) ChatCreated(ctx context.Context, data ChatCreatedData) {
	e.emit(ctx, KeyChatCreated, TypeChatCreated, data)
}

func (e *Emitter) NewMessage(ctx context.Context, data NewMessageData) {
	e.emit(ctx, KeyNewMessage, TypeNewMessage, data)
}

func (e *Emitter) MessagesRead(ctx context.Context, data MessagesReadData) {
	e.emit(ctx, KeyMessagesRead, TypeMessagesRead, data)
}

func (e *Emitter) emit(ctx context.Context, key, eventType string, data any) {
	env := Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: e.producer,
			Time:     time.Now(),
			Type:     eventType,
		},
		Data: data,
	}

	for _, s := range e.sinks {
		if err := s.Deliver(ctx, key, env); err != nil {
			log.Printf("Error delivering event %s (%s): %v", eventType, env.Meta.ID, err)
		}
	}
}
