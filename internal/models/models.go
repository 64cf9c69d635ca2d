package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID         string    `json:"_id" bson:"_id"`
	Email      string    `json:"email" bson:"email"`
	FullName   string    `json:"fullName" bson:"fullName"`
	Password   string    `json:"-" bson:"password"`
	ProfilePic string    `json:"profilePic" bson:"profilePic"`
	Bio        string    `json:"bio" bson:"bio"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Message is a direct message between two users. Only Seen changes after creation.
type Message struct {
	ID         string    `json:"_id" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"senderId"`
	ReceiverID string    `json:"receiverId" bson:"receiverId"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	Image      string    `json:"image,omitempty" bson:"image,omitempty"`
	Seen       bool      `json:"seen" bson:"seen"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Frame is the envelope for every websocket event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	EventNewMessage     = "newMessage"
	EventGetOnlineUsers = "getOnlineUsers"
)
