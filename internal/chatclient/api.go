package chatclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pliu/chatapp/internal/models"
)

// MessageInput is the body of a send request.
type MessageInput struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// APIError is a reply with success=false or a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

type envelope struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	Token          string           `json:"token"`
	UserData       *models.User     `json:"userData"`
	User           *models.User     `json:"user"`
	Users          []models.User    `json:"users"`
	UnseenMessages map[string]int   `json:"unseenMessages"`
	Messages       []models.Message `json:"messages"`
	NewMessage     *models.Message  `json:"newMessage"`
}

// API talks to the chat server's REST endpoints with the session token header.
type API struct {
	http *resty.Client
}

func NewAPI(baseURL, token string) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	if token != "" {
		c.SetHeader("token", token)
	}
	return &API{http: c}
}

// SetToken replaces the session token, for example after Login.
func (a *API) SetToken(token string) {
	a.http.SetHeader("token", token)
}

func (a *API) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var env envelope
	req := a.http.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() || !env.Success {
		return nil, &APIError{Status: resp.StatusCode(), Message: env.Message}
	}
	return &env, nil
}

// Signup creates an account and switches this client to its token.
func (a *API) Signup(ctx context.Context, fullName, email, password, bio string) (string, *models.User, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
		"bio":      bio,
	})
	if err != nil {
		return "", nil, err
	}
	a.SetToken(env.Token)
	return env.Token, env.UserData, nil
}

// Login exchanges credentials for a token and switches this client to it.
func (a *API) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return "", nil, err
	}
	a.SetToken(env.Token)
	return env.Token, env.UserData, nil
}

func (a *API) GetUsers(ctx context.Context) ([]models.User, map[string]int, error) {
	env, err := a.do(ctx, http.MethodGet, "/api/messages/users", nil)
	if err != nil {
		return nil, nil, err
	}
	if env.UnseenMessages == nil {
		env.UnseenMessages = map[string]int{}
	}
	return env.Users, env.UnseenMessages, nil
}

func (a *API) GetMessages(ctx context.Context, userID string) ([]models.Message, error) {
	env, err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	return env.Messages, nil
}

func (a *API) SendMessage(ctx context.Context, receiverID string, in MessageInput) (*models.Message, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), in)
	if err != nil {
		return nil, err
	}
	if env.NewMessage == nil {
		return nil, &APIError{Status: http.StatusOK, Message: "response has no message"}
	}
	return env.NewMessage, nil
}

func (a *API) MarkSeen(ctx context.Context, messageID string) error {
	_, err := a.do(ctx, http.MethodPut, "/api/messages/mark/"+url.PathEscape(messageID), nil)
	return err
}
