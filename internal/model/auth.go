package model

import "github.com/golang-jwt/jwt/v5"

// HostClaims is the JWT payload for the operator account.
type HostClaims struct {
	HostID string `json:"hostId"`
	jwt.RegisteredClaims
}

// ParticipantClaims is the room-scoped JWT payload handed out on join.
type ParticipantClaims struct {
	RoomCode      string `json:"roomCode"`
	ParticipantID string `json:"participantId"`
	UserID        string `json:"userId"`
	jwt.RegisteredClaims
}

type LoginResponse struct {
	Token  string `json:"token"`
	HostID string `json:"hostId"`
}

// JoinResponse is returned when a user joins a room.
type JoinResponse struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	HostID        string `json:"hostId"`
	Token         string `json:"token"`
}
