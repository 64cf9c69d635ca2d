package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/auth"
	"github.com/pliu/chatapp/internal/handlers"
	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store/sqlstore"
	"github.com/pliu/chatapp/internal/ws"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlstore.SQLStore) {
	t.Helper()
	store, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(zap.NewNop())
	go hub.Run(ctx)

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:  store,
		Hub:    hub,
		Signer: auth.NewSigner("test-secret", 0),
		Log:    zap.NewNop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestAPIRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	alice := NewAPI(srv.URL, "")
	if _, _, err := alice.Signup(ctx, "Alice", "alice@example.com", "secret", ""); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	bob := NewAPI(srv.URL, "")
	_, bobUser, err := bob.Signup(ctx, "Bob", "bob@example.com", "secret", "hi")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	// A fresh client logging in picks up the token.
	relogin := NewAPI(srv.URL, "")
	token, user, err := relogin.Login(ctx, "alice@example.com", "secret")
	if err != nil || token == "" || user == nil || user.FullName != "Alice" {
		t.Fatalf("Login = %q, %+v, %v", token, user, err)
	}

	sent, err := relogin.SendMessage(ctx, bobUser.ID, MessageInput{Text: "hello bob"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if sent.Text != "hello bob" || sent.ReceiverID != bobUser.ID || sent.Seen {
		t.Errorf("Unexpected stored message %+v", sent)
	}

	users, unseen, err := bob.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 1 || users[0].FullName != "Alice" {
		t.Fatalf("Expected only Alice in bob's sidebar, got %+v", users)
	}
	if unseen[users[0].ID] != 1 {
		t.Errorf("Expected 1 unseen from Alice, got %v", unseen)
	}

	if err := bob.MarkSeen(ctx, sent.ID); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	messages, err := bob.GetMessages(ctx, users[0].ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 1 || !messages[0].Seen {
		t.Errorf("Expected one seen message, got %+v", messages)
	}
}

func TestAPIErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := NewAPI(srv.URL, "").GetUsers(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "No token provided" {
		t.Errorf("Unexpected error %+v", apiErr)
	}

	_, _, err = NewAPI(srv.URL, "").Login(ctx, "nobody@example.com", "x")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad login, got %v", err)
	}
}

func TestChatOverSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	aliceAPI := NewAPI(srv.URL, "")
	_, aliceUser, err := aliceAPI.Signup(ctx, "Alice", "alice@example.com", "secret", "")
	if err != nil {
		t.Fatal(err)
	}
	bobAPI := NewAPI(srv.URL, "")
	bobToken, bobUser, err := bobAPI.Signup(ctx, "Bob", "bob@example.com", "secret", "")
	if err != nil {
		t.Fatal(err)
	}
	carolAPI := NewAPI(srv.URL, "")
	_, carolUser, err := carolAPI.Signup(ctx, "Carol", "carol@example.com", "secret", "")
	if err != nil {
		t.Fatal(err)
	}

	socket, err := Dial(ctx, srv.URL, bobToken)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer socket.Close()

	// The hub greets every registered connection with the online list.
	online := make(chan struct{}, 1)
	socket.On(models.EventGetOnlineUsers, func(json.RawMessage) {
		select {
		case online <- struct{}{}:
		default:
		}
	})

	chat := New(bobAPI, socket, nil, nil)
	changed := make(chan struct{}, 16)
	chat.SetSelectedUser(ctx, aliceUser)
	chat.Changed = func() { changed <- struct{}{} }
	go socket.Run(ctx)

	select {
	case <-online:
	case <-ctx.Done():
		t.Fatal("bob never came online")
	}

	fromCarol, err := carolAPI.SendMessage(ctx, bobUser.ID, MessageInput{Text: "psst"})
	if err != nil {
		t.Fatal(err)
	}
	waitChanged(t, ctx, changed)
	if chat.Unseen()[carolUser.ID] != 1 {
		t.Errorf("Expected carol's message counted unseen, got %v", chat.Unseen())
	}

	fromAlice, err := aliceAPI.SendMessage(ctx, bobUser.ID, MessageInput{Text: "hi bob"})
	if err != nil {
		t.Fatal(err)
	}
	waitChanged(t, ctx, changed)
	messages := chat.Messages()
	if len(messages) != 1 || messages[0].ID != fromAlice.ID || !messages[0].Seen {
		t.Fatalf("Expected alice's message appended as seen, got %+v", messages)
	}

	// The mark request runs right after the state change, so poll for it.
	for {
		_, unseen, err := bobAPI.GetUsers(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if unseen[carolUser.ID] != 1 {
			t.Fatalf("Carol's message %s must stay unseen, got %v", fromCarol.ID, unseen)
		}
		if unseen[aliceUser.ID] == 0 {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Alice's message was never marked seen: %v", unseen)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitChanged(t *testing.T, ctx context.Context, changed <-chan struct{}) {
	t.Helper()
	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("timed out waiting for a state change")
	}
}
