package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizparty/internal/model"
)

// ParticipantRepo persists membership records. Records survive the room
// for post-game summaries; leave and eliminate are status updates, never
// deletes.
type ParticipantRepo interface {
	Upsert(ctx context.Context, p *model.Participant) error
	GetByID(ctx context.Context, id string) (*model.Participant, error)
	GetByRoom(ctx context.Context, roomID string) ([]*model.Participant, error)
}

type participantRepo struct {
	collection *mongo.Collection
}

func NewParticipantRepo(db *mongo.Database) ParticipantRepo {
	return &participantRepo{
		collection: db.Collection("participants"),
	}
}

func (r *participantRepo) Upsert(ctx context.Context, p *model.Participant) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	return err
}

func (r *participantRepo) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	var p model.Participant
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) GetByRoom(ctx context.Context, roomID string) ([]*model.Participant, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*model.Participant
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
