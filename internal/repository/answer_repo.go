package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizparty/internal/model"
)

// AnswerRepo is the append-only stage-answer log.
type AnswerRepo interface {
	Append(ctx context.Context, answer *model.StageAnswer) error
	GetByRoom(ctx context.Context, roomID string) ([]*model.StageAnswer, error)
	GetByParticipant(ctx context.Context, participantID string) ([]*model.StageAnswer, error)
}

type answerRepo struct {
	collection *mongo.Collection
}

func NewAnswerRepo(db *mongo.Database) AnswerRepo {
	return &answerRepo{
		collection: db.Collection("stage_answers"),
	}
}

func (r *answerRepo) Append(ctx context.Context, answer *model.StageAnswer) error {
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = time.Now()
	}
	if answer.ID == "" {
		answer.ID = primitive.NewObjectID().Hex()
	}

	_, err := r.collection.InsertOne(ctx, answer)
	return err
}

func (r *answerRepo) GetByRoom(ctx context.Context, roomID string) ([]*model.StageAnswer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stageIndex", Value: 1}, {Key: "answeredAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var answers []*model.StageAnswer
	if err = cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *answerRepo) GetByParticipant(ctx context.Context, participantID string) ([]*model.StageAnswer, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"participantId": participantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var answers []*model.StageAnswer
	if err = cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}
