// Package chatclient is a Go client for the chat server: a REST API wrapper,
// a websocket listener, and Chat, the state container behind a chat UI.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/models"
)

// Backend is the subset of API that Chat calls.
type Backend interface {
	GetUsers(ctx context.Context) ([]models.User, map[string]int, error)
	GetMessages(ctx context.Context, userID string) ([]models.Message, error)
	SendMessage(ctx context.Context, receiverID string, in MessageInput) (*models.Message, error)
	MarkSeen(ctx context.Context, messageID string) error
}

// Listener registers one handler per event name.
type Listener interface {
	On(event string, fn func(json.RawMessage))
	Off(event string)
}

// Notifier shows transient error messages to the user.
type Notifier interface {
	Error(message string)
}

type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Error(message string) {
	n.Log.Warn(message)
}

// Chat holds the message list, user list, selected user and per-sender unseen
// counts. Network failures are reported through the Notifier and never retried.
type Chat struct {
	api    Backend
	socket Listener
	notify Notifier
	log    *zap.Logger

	mu       sync.Mutex
	messages []models.Message
	users    []models.User
	selected *models.User
	unseen   map[string]int

	// Changed, if set, runs after every state change, outside the lock.
	Changed func()
}

// New builds a Chat. socket may be nil when no realtime connection exists.
func New(api Backend, socket Listener, notify Notifier, log *zap.Logger) *Chat {
	if log == nil {
		log = zap.NewNop()
	}
	if notify == nil {
		notify = LogNotifier{Log: log}
	}
	return &Chat{
		api:    api,
		socket: socket,
		notify: notify,
		log:    log,
		unseen: make(map[string]int),
	}
}

func (c *Chat) changed() {
	if c.Changed != nil {
		c.Changed()
	}
}

func (c *Chat) fail(err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		c.notify.Error(apiErr.Message)
		return
	}
	c.notify.Error(err.Error())
}

// GetUsers loads the sidebar users and their unseen counts.
func (c *Chat) GetUsers(ctx context.Context) {
	users, unseen, err := c.api.GetUsers(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	if unseen == nil {
		unseen = make(map[string]int)
	}
	c.mu.Lock()
	c.users = users
	c.unseen = unseen
	c.mu.Unlock()
	c.changed()
}

// GetMessages replaces the message list with the conversation with userID.
func (c *Chat) GetMessages(ctx context.Context, userID string) {
	messages, err := c.api.GetMessages(ctx, userID)
	if err != nil {
		c.fail(err)
		return
	}
	c.mu.Lock()
	c.messages = messages
	c.mu.Unlock()
	c.changed()
}

// SendMessage sends in to the selected user and appends the stored message.
func (c *Chat) SendMessage(ctx context.Context, in MessageInput) {
	c.mu.Lock()
	selected := c.selected
	c.mu.Unlock()
	if selected == nil {
		c.notify.Error("No user selected")
		return
	}

	msg, err := c.api.SendMessage(ctx, selected.ID, in)
	if err != nil {
		c.fail(err)
		return
	}
	c.mu.Lock()
	c.messages = append(c.messages, *msg)
	c.mu.Unlock()
	c.changed()
}

// SetSelectedUser switches the conversation, resubscribes to incoming
// messages and loads the new conversation. A nil user clears the selection.
func (c *Chat) SetSelectedUser(ctx context.Context, user *models.User) {
	c.mu.Lock()
	if user != nil {
		u := *user
		user = &u
	}
	c.selected = user
	c.mu.Unlock()
	c.changed()

	c.Unsubscribe()
	c.Subscribe()

	if user == nil || user.ID == "" {
		return
	}
	c.GetMessages(ctx, user.ID)
}

// SetUnseen replaces the unseen counts, e.g. to clear one sender after opening its conversation.
func (c *Chat) SetUnseen(unseen map[string]int) {
	cp := make(map[string]int, len(unseen))
	for k, v := range unseen {
		cp[k] = v
	}
	c.mu.Lock()
	c.unseen = cp
	c.mu.Unlock()
	c.changed()
}

// Subscribe registers the newMessage handler on the socket.
func (c *Chat) Subscribe() {
	if c.socket == nil {
		return
	}
	c.socket.On(models.EventNewMessage, func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("decode newMessage", zap.Error(err))
			return
		}
		c.HandleNewMessage(msg)
	})
}

func (c *Chat) Unsubscribe() {
	if c.socket != nil {
		c.socket.Off(models.EventNewMessage)
	}
}

// HandleNewMessage applies an incoming message. A message from the selected
// user is marked seen, appended and reported to the server; anything else
// only bumps its sender's unseen count.
func (c *Chat) HandleNewMessage(msg models.Message) {
	c.mu.Lock()
	if c.selected == nil || msg.SenderID != c.selected.ID {
		c.unseen[msg.SenderID]++
		c.mu.Unlock()
		c.changed()
		return
	}
	msg.Seen = true
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.changed()

	if err := c.api.MarkSeen(context.Background(), msg.ID); err != nil {
		c.log.Debug("mark seen", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (c *Chat) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages...)
}

func (c *Chat) Users() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.User(nil), c.users...)
}

func (c *Chat) SelectedUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	u := *c.selected
	return &u
}

func (c *Chat) Unseen() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]int, len(c.unseen))
	for k, v := range c.unseen {
		cp[k] = v
	}
	return cp
}
