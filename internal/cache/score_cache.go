package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ScoreCache keeps the per-room total-score ZSET behind the leaderboard
// endpoint and the end-of-game summary.
type ScoreCache interface {
	UpdateScore(ctx context.Context, roomCode, participantID string, score int) error
	GetTop(ctx context.Context, roomCode string, limit int) ([]ScoreEntry, error)
	GetRank(ctx context.Context, roomCode, participantID string) (int64, error)
	DeleteRoom(ctx context.Context, roomCode string) error
}

type ScoreEntry struct {
	ParticipantID string `json:"participantId"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

type scoreCache struct {
	client *redis.Client
}

func NewScoreCache(client *redis.Client) ScoreCache {
	return &scoreCache{
		client: client,
	}
}

func (c *scoreCache) key(roomCode string) string {
	return fmt.Sprintf("room:%s:scores", roomCode)
}

func (c *scoreCache) UpdateScore(ctx context.Context, roomCode, participantID string, score int) error {
	return c.client.ZAdd(ctx, c.key(roomCode), redis.Z{
		Score:  float64(score),
		Member: participantID,
	}).Err()
}

func (c *scoreCache) GetTop(ctx context.Context, roomCode string, limit int) ([]ScoreEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]ScoreEntry, len(results))
	for i, z := range results {
		entries[i] = ScoreEntry{
			ParticipantID: z.Member.(string),
			Score:         int(z.Score),
			Rank:          i + 1,
		}
	}
	return entries, nil
}

func (c *scoreCache) GetRank(ctx context.Context, roomCode, participantID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(roomCode), participantID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}

func (c *scoreCache) DeleteRoom(ctx context.Context, roomCode string) error {
	return c.client.Del(ctx, c.key(roomCode)).Err()
}
