package service

import (
	"context"

	"quizparty/internal/voice"
)

// Broadcaster is the websocket hub surface the service needs (avoids an
// import cycle with the transport package). Snapshot fanout itself arrives
// at the hub through the pub/sub bridge, not through this interface.
type Broadcaster interface {
	DisconnectRoom(roomCode string)
}

// VoiceEnforcer is the voice-transport surface consumed here; implemented
// by voice.Manager.
type VoiceEnforcer interface {
	Connect(ctx context.Context, roomCode, participantID string) (voice.Session, error)
	ForceApply(roomCode string, allowed map[string]bool)
	Disconnect(roomCode, participantID string)
	CloseRoom(roomCode string)
}
