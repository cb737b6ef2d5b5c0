package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoUsersCollection = "users"

// MongoStore implements identity persistence over a MongoDB collection.
// The client is owned by the caller.
type MongoStore struct {
	users *mongo.Collection
}

type mongoUserDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	EmailNorm    string    `bson:"email_norm"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d mongoUserDoc) user() User {
	return User{
		ID:        d.ID,
		Email:     d.Email,
		EmailNorm: d.EmailNorm,
		Name:      d.Name,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// NewMongoStore constructs a MongoStore on db's "users" collection.
func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil mongo database")
	}
	return &MongoStore{users: db.Collection(mongoUsersCollection)}, nil
}

// EnsureIndexes creates the unique email index that backs duplicate detection.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email_norm", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_users_email_norm"),
	})
	if err != nil {
		return fmt.Errorf("identity: ensure mongo indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, rec NewUserRecord) (User, error) {
	const op = "identity.CreateUser"
	if rec.ID == "" || rec.EmailNorm == "" || rec.PasswordHash == "" {
		return User{}, invalid(op, "incomplete user record")
	}

	doc := mongoUserDoc{
		ID:           rec.ID,
		Email:        rec.Email,
		EmailNorm:    rec.EmailNorm,
		Name:         rec.Name,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			field := "email"
			if !strings.Contains(err.Error(), "email_norm") {
				field = "id"
			}
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.user(), nil
}

func (s *MongoStore) GetUserAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	var doc mongoUserDoc
	if err := s.users.FindOne(ctx, bson.M{"email_norm": emailNorm}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	return UserAuth{User: doc.user(), PasswordHash: doc.PasswordHash}, nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	var doc mongoUserDoc
	opts := options.FindOne().SetProjection(bson.M{"password_hash": 0})
	if err := s.users.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.user(), nil
}

func (s *MongoStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if passwordHash == "" {
		return invalid(op, "empty password hash")
	}

	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}
