package model

import "time"

// Snapshot event types pushed to room observers. Delivery is at-least-once;
// clients reconcile from the full snapshot, so duplicates are harmless.
const (
	EventRoomUpdated  = "room_updated"
	EventRoomDeleted  = "room_deleted"
	EventStageAnswer  = "stage_answer"
	EventGameFinished = "game_finished"
)

// ParticipantView is the snapshot projection of one participant.
type ParticipantView struct {
	ID         string            `json:"id"`
	Nickname   string            `json:"nickname"`
	Status     ParticipantStatus `json:"status"`
	Lives      int               `json:"livesRemaining"`
	TotalScore int               `json:"totalScore"`
}

// RoomSnapshot is the full reconciliation state pushed on every change and
// on the periodic reconciliation pass.
type RoomSnapshot struct {
	RoomID       string            `json:"roomId"`
	Code         string            `json:"code"`
	Status       RoomStatus        `json:"status"`
	HostID       string            `json:"hostId"`
	StageIndex   int               `json:"stageIndex"`
	MaxStages    int               `json:"maxStages"`
	Participants []ParticipantView `json:"participants"`
	TurnOrder    []string          `json:"turnOrder"` // participant ids, head is turn holder
	Active       *ActiveQuestion   `json:"activeQuestion,omitempty"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}
