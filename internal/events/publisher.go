// Package events is the room-change notification channel: full snapshots
// published through Redis pub/sub with at-least-once delivery. Observers
// reconcile from the snapshot, so duplicates are harmless.
package events

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"quizparty/internal/model"
)

// Envelope is the published message format.
type Envelope struct {
	Type     string              `json:"type"`
	RoomCode string              `json:"roomCode"`
	Snapshot *model.RoomSnapshot `json:"snapshot,omitempty"`
}

// Publisher pushes room-state notifications to observers.
type Publisher interface {
	PublishSnapshot(ctx context.Context, eventType string, snapshot *model.RoomSnapshot) error
	PublishDeleted(ctx context.Context, roomCode string) error
}

type redisPublisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func channelFor(code string) string {
	return "room:" + code + ":events"
}

func (p *redisPublisher) PublishSnapshot(ctx context.Context, eventType string, snapshot *model.RoomSnapshot) error {
	data, err := json.Marshal(&Envelope{
		Type:     eventType,
		RoomCode: snapshot.Code,
		Snapshot: snapshot,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channelFor(snapshot.Code), data).Err()
}

func (p *redisPublisher) PublishDeleted(ctx context.Context, roomCode string) error {
	data, err := json.Marshal(&Envelope{
		Type:     model.EventRoomDeleted,
		RoomCode: roomCode,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channelFor(roomCode), data).Err()
}

// Forwarder receives envelopes off the pub/sub channel, e.g. the websocket
// hub fanning them out to connected clients.
type Forwarder interface {
	Forward(roomCode string, payload []byte)
}

// Bridge subscribes to every room channel and hands envelopes to the
// forwarder. Run blocks until ctx is cancelled.
func Bridge(ctx context.Context, client *redis.Client, fwd Forwarder) error {
	sub := client.PSubscribe(ctx, "room:*:events")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			code := roomCodeFromChannel(msg.Channel)
			if code == "" {
				log.Printf("events: unrecognized channel %q", msg.Channel)
				continue
			}
			fwd.Forward(code, []byte(msg.Payload))
		}
	}
}

func roomCodeFromChannel(channel string) string {
	// room:<code>:events
	parts := strings.Split(channel, ":")
	if len(parts) != 3 || parts[0] != "room" || parts[2] != "events" {
		return ""
	}
	return parts[1]
}
