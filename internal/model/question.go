package model

import "time"

// Phase is the sub-state of the active stage.
type Phase string

const (
	PhaseReading   Phase = "reading"
	PhaseAnswering Phase = "answering"
	PhaseResolved  Phase = "resolved"
)

// Choice is one selectable option of a question.
type Choice struct {
	Label string `json:"label" bson:"label"` // e.g. "A"
	Text  string `json:"text" bson:"text"`
}

// Question is the content of one stage. Question banks are managed
// elsewhere; rooms receive their set at creation time.
type Question struct {
	Prompt  string   `json:"prompt" bson:"prompt"`
	Choices []Choice `json:"choices" bson:"choices"`
	Answer  string   `json:"answer" bson:"answer"` // correct choice label
	Points  int      `json:"points" bson:"points"`
}

// ActiveQuestion is the single live question of a room. One instance
// exists per room while the room is playing.
type ActiveQuestion struct {
	RoomID       string     `json:"roomId" bson:"roomId"`
	StageIndex   int        `json:"stageIndex" bson:"stageIndex"`
	Question     Question   `json:"question" bson:"question"`
	Phase        Phase      `json:"phase" bson:"phase"`
	TurnHolderID string     `json:"turnHolderId" bson:"turnHolderId"`
	Deadline     *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`
}
