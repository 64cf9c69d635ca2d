// Package mongostore implements store.Store on MongoDB. Users and messages
// live in two collections keyed by hex ObjectID strings.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store"
)

type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
}

var _ store.Store = (*MongoStore)(nil)

// New connects, pings the primary and ensures indexes.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		messages: db.Collection("messages"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "seen", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create messages indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*models.User, error) {
	set := bson.M{}
	if fullName != "" {
		set["fullName"] = fullName
	}
	if bio != "" {
		set["bio"] = bio
	}
	if profilePic != "" {
		set["profilePic"] = profilePic
	}
	if len(set) == 0 {
		return s.GetUserByID(ctx, id)
	}

	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}})
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$ne": id}}, opts)
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *MongoStore) GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": userID, "receiverId": otherID},
		bson.M{"senderId": otherID, "receiverId": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	messages := []models.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MongoStore) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiverId": receiverID, "seen": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$senderId", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Sender string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.Count > 0 {
			counts[r.Sender] = r.Count
		}
	}
	return counts, nil
}

func (s *MongoStore) MarkConversationSeen(ctx context.Context, senderID, receiverID string) error {
	_, err := s.messages.UpdateMany(ctx,
		bson.M{"senderId": senderID, "receiverId": receiverID, "seen": false},
		bson.M{"$set": bson.M{"seen": true}},
	)
	return err
}

func (s *MongoStore) MarkMessageSeen(ctx context.Context, messageID, receiverID string) error {
	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "receiverId": receiverID},
		bson.M{"$set": bson.M{"seen": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
