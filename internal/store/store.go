package store

import (
	"context"
	"errors"

	"github.com/pliu/chatapp/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*models.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.User, error)

	// Message operations
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error)
	// UnseenCounts maps sender id to unseen messages addressed to receiverID; zero counts are omitted.
	UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error)
	MarkConversationSeen(ctx context.Context, senderID, receiverID string) error
	MarkMessageSeen(ctx context.Context, messageID, receiverID string) error

	Close() error
}
