package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTasksCollection = "tasks"

// MongoRepository implements task persistence over a MongoDB collection.
// The client is owned by the caller.
type MongoRepository struct {
	tasks *mongo.Collection
}

type mongoTaskDoc struct {
	ID          string    `bson:"_id"`
	Owner       string    `bson:"user"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d mongoTaskDoc) task() Task {
	return Task{
		ID:          d.ID,
		Owner:       d.Owner,
		Title:       d.Title,
		Description: d.Description,
		Status:      Status(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// NewMongoRepository constructs a MongoRepository on db's "tasks" collection.
func NewMongoRepository(db *mongo.Database) (*MongoRepository, error) {
	if db == nil {
		return nil, errors.New("tasks: nil mongo database")
	}
	return &MongoRepository{tasks: db.Collection(mongoTasksCollection)}, nil
}

// EnsureIndexes creates the owner listing index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("idx_tasks_user_created"),
	})
	if err != nil {
		return fmt.Errorf("tasks: ensure mongo indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Insert(ctx context.Context, t Task) (Task, error) {
	const op = "tasks.Insert"

	doc := mongoTaskDoc{
		ID:          t.ID,
		Owner:       t.Owner,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if _, err := r.tasks.InsertOne(ctx, doc); err != nil {
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *MongoRepository) List(ctx context.Context, owner string, f Filter) ([]Task, error) {
	const op = "tasks.List"

	filter := bson.D{{Key: "user", Value: owner}}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(f.Status)})
	}
	if f.Query != "" {
		filter = append(filter, bson.E{Key: "title", Value: primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.tasks.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]Task, 0)
	for cur.Next(ctx) {
		var doc mongoTaskDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, doc.task())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *MongoRepository) Get(ctx context.Context, owner, id string) (Task, error) {
	const op = "tasks.Get"

	var doc mongoTaskDoc
	err := r.tasks.FindOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "user", Value: owner}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Task{}, NotFoundError{Op: op, ID: id}
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.task(), nil
}

func (r *MongoRepository) Update(ctx context.Context, owner, id string, ch Changes) (Task, error) {
	const op = "tasks.Update"

	set := bson.D{{Key: "updated_at", Value: ch.UpdatedAt}}
	if ch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *ch.Title})
	}
	if ch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *ch.Description})
	}
	if ch.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*ch.Status)})
	}

	var doc mongoTaskDoc
	err := r.tasks.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "user", Value: owner}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Task{}, NotFoundError{Op: op, ID: id}
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.task(), nil
}

func (r *MongoRepository) Delete(ctx context.Context, owner, id string) error {
	const op = "tasks.Delete"

	res, err := r.tasks.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "user", Value: owner}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return NotFoundError{Op: op, ID: id}
	}
	return nil
}
