package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

var _ store.Store = (*SQLStore)(nil)

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// Every new connection to an in-memory sqlite database is a fresh, empty database.
	if strings.Contains(dataSourceName, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL,
		password TEXT NOT NULL,
		profile_pic TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT NOT NULL REFERENCES users(id),
		text TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		seen BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
	CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages(receiver_id, seen);
	`

	if s.driverName == "postgres" {
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMPTZ")
	}

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

const userColumns = "id, email, full_name, password, profile_pic, bio, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Password, &u.ProfilePic, &u.Bio, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := s.rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.FullName, user.Password, user.ProfilePic, user.Bio, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*models.User, error) {
	query := s.rebind(`
		UPDATE users SET
			full_name = CASE WHEN ? = '' THEN full_name ELSE ? END,
			bio = CASE WHEN ? = '' THEN bio ELSE ? END,
			profile_pic = CASE WHEN ? = '' THEN profile_pic ELSE ? END
		WHERE id = ?
	`)
	result, err := s.db.ExecContext(ctx, query, fullName, fullName, bio, bio, profilePic, profilePic, id)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id <> ? ORDER BY full_name ASC")
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *SQLStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := s.rebind("INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.Seen, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLStore) GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	query := s.rebind(`
		SELECT id, sender_id, receiver_id, text, image, seen, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, userID, otherID, otherID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.Seen, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLStore) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	query := s.rebind(`
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = ? AND seen = ?
		GROUP BY sender_id
	`)
	rows, err := s.db.QueryContext(ctx, query, receiverID, false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		if n > 0 {
			counts[sender] = n
		}
	}
	return counts, rows.Err()
}

func (s *SQLStore) MarkConversationSeen(ctx context.Context, senderID, receiverID string) error {
	query := s.rebind("UPDATE messages SET seen = ? WHERE sender_id = ? AND receiver_id = ? AND seen = ?")
	_, err := s.db.ExecContext(ctx, query, true, senderID, receiverID, false)
	return err
}

func (s *SQLStore) MarkMessageSeen(ctx context.Context, messageID, receiverID string) error {
	query := s.rebind("UPDATE messages SET seen = ? WHERE id = ? AND receiver_id = ?")
	result, err := s.db.ExecContext(ctx, query, true, messageID, receiverID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
