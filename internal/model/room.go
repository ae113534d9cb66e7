package model

import "time"

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Room is the durable record for one quiz session instance.
type Room struct {
	ID                string     `json:"id" bson:"_id,omitempty"`
	Code              string     `json:"code" bson:"code"`
	Status            RoomStatus `json:"status" bson:"status"`
	HostParticipantID string     `json:"hostParticipantId" bson:"hostParticipantId"`
	CurrentStageIndex int        `json:"currentStageIndex" bson:"currentStageIndex"`
	MaxStages         int        `json:"maxStages" bson:"maxStages"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
}

// RoomMeta is the Redis-cached lookup record keyed by join code.
type RoomMeta struct {
	RoomID    string     `json:"roomId"`
	Code      string     `json:"code"`
	Status    RoomStatus `json:"status"`
	HostID    string     `json:"hostId"`
	MaxStages int        `json:"maxStages"`
	CreatedAt time.Time  `json:"createdAt"`
}
