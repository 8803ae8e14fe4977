package core

import (
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	Room      string
	From      string
	Text      string
	CreatedAt time.Time
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		Room:      m.Room,
		From:      m.Sender,
		Text:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

func messagesFromStore(ms []*store.Message) []Message {
	return lo.Map(ms, func(m *store.Message, _ int) Message {
		return messageFromStore(m)
	})
}
