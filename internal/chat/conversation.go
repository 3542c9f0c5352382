package chat

import (
	"context"
	"sync"
)

type Completer interface {
	Complete(context.Context, []Message) (string, error)
}

// Conversation keeps the text chat history and sends all of it on every turn.
type Conversation struct {
	completer Completer

	mu      sync.Mutex
	history []Message
}

func NewConversation(completer Completer) *Conversation {
	return &Conversation{completer: completer}
}

// Send appends text as a user turn and the reply as an assistant turn. A
// failed turn leaves the history untouched.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := append(c.snapshot(), UserText(text))
	reply, err := c.completer.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	c.history = append(messages, AssistantText(reply))
	return reply, nil
}

func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

func (c *Conversation) snapshot() []Message {
	return append([]Message(nil), c.history...)
}
