package model

import "time"

// StageAnswer is one row of the append-only answer log. A timed-out turn
// records a row with TimedOut set and no text; a voluntary leave records
// nothing.
type StageAnswer struct {
	ID            string    `json:"id" bson:"_id,omitempty"`
	RoomID        string    `json:"roomId" bson:"roomId"`
	StageIndex    int       `json:"stageIndex" bson:"stageIndex"`
	ParticipantID string    `json:"participantId" bson:"participantId"`
	Text          string    `json:"text" bson:"text"`
	Choice        string    `json:"choice" bson:"choice"` // parsed choice label, if any
	Correct       bool      `json:"correct" bson:"correct"`
	Points        int       `json:"points" bson:"points"`
	TimedOut      bool      `json:"timedOut" bson:"timedOut"`
	AnsweredAt    time.Time `json:"answeredAt" bson:"answeredAt"`
}
