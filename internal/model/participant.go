package model

import "time"

type ParticipantStatus string

const (
	ParticipantActive     ParticipantStatus = "active"
	ParticipantLeft       ParticipantStatus = "left"
	ParticipantEliminated ParticipantStatus = "eliminated"
)

// InitialLives is granted on every join, including a re-join after leaving.
const InitialLives = 3

// Participant is a user's membership record within one room. Records are
// never hard-deleted while the room exists so stage answers keep a valid
// participant reference.
type Participant struct {
	ID         string            `json:"id" bson:"_id,omitempty"`
	RoomID     string            `json:"roomId" bson:"roomId"`
	UserID     string            `json:"userId" bson:"userId"`
	Nickname   string            `json:"nickname" bson:"nickname"`
	Status     ParticipantStatus `json:"status" bson:"status"`
	Lives      int               `json:"livesRemaining" bson:"livesRemaining"`
	TotalScore int               `json:"totalScore" bson:"totalScore"`
	JoinedAt   time.Time         `json:"joinedAt" bson:"joinedAt"`
}

// TurnQueueEntry is one position in a room's turn order. The queue is
// rebuilt whenever the active-participant set changes.
type TurnQueueEntry struct {
	RoomID        string `json:"roomId" bson:"roomId"`
	ParticipantID string `json:"participantId" bson:"participantId"`
	Position      int    `json:"position" bson:"position"`
}
