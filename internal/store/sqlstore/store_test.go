package sqlstore

import (
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	var err error
	testStore, err = New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
}

func TeardownTestDB() {
	testStore.Close()
}

func TestRebind(t *testing.T) {
	s := &SQLStore{driverName: "postgres"}
	got := s.rebind("SELECT * FROM messages WHERE sender_id = ? AND receiver_id = ?")
	want := "SELECT * FROM messages WHERE sender_id = $1 AND receiver_id = $2"
	if got != want {
		t.Errorf("rebind postgres: got %q want %q", got, want)
	}

	s = &SQLStore{driverName: "sqlite3"}
	if got := s.rebind("id = ?"); got != "id = ?" {
		t.Errorf("rebind sqlite3 should be a no-op, got %q", got)
	}
}
