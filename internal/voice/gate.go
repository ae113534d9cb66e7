package voice

import (
	"context"
	"log"
	"sync"
	"time"

	"quizparty/internal/model"
)

// SpeakingAllowed is the pure gate decision: only the turn holder may be
// heard, and only while the stage is in the answering phase.
func SpeakingAllowed(phase model.Phase, turnHolderID, participantID string) bool {
	return phase == model.PhaseAnswering && participantID == turnHolderID && turnHolderID != ""
}

// Manager owns one Session per (room, participant) pair and force-applies
// mute state against the transport. Sessions are never shared across rooms.
type Manager struct {
	mu       sync.Mutex
	client   ChannelClient
	sessions map[string]map[string]*member // room code -> participant id
}

type member struct {
	session Session
	// muteGen lets a newer force-apply supersede in-flight retries.
	muteGen uint64
}

func NewManager(client ChannelClient) *Manager {
	return &Manager{
		client:   client,
		sessions: make(map[string]map[string]*member),
	}
}

// Connect attaches a participant to the room's voice channel. Calling it
// again for an already-connected pair returns the existing session.
func (m *Manager) Connect(ctx context.Context, roomCode, participantID string) (Session, error) {
	m.mu.Lock()
	if room, ok := m.sessions[roomCode]; ok {
		if mem, ok := room[participantID]; ok {
			m.mu.Unlock()
			return mem.session, nil
		}
	}
	m.mu.Unlock()

	session, err := m.client.JoinChannel(ctx, roomCode, participantID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.sessions[roomCode]
	if room == nil {
		room = make(map[string]*member)
		m.sessions[roomCode] = room
	}
	if existing, ok := room[participantID]; ok {
		// Lost the connect race; keep the first session.
		session.Leave()
		return existing.session, nil
	}
	mem := &member{session: session}
	room[participantID] = mem

	// A fresh session starts muted until the next force-apply says
	// otherwise.
	go m.applyMuted(session, true, &mem.muteGen, mem.muteGen)
	return session, nil
}

// ForceApply re-derives and re-applies the mute state of every connected
// participant in the room. Transport failures are retried in the
// background and never block game-state progression.
func (m *Manager) ForceApply(roomCode string, allowed map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.sessions[roomCode]
	for participantID, mem := range room {
		mem.muteGen++
		muted := !allowed[participantID]
		go m.applyMuted(mem.session, muted, &mem.muteGen, mem.muteGen)
	}
}

// Disconnect detaches one participant from the room's channel.
func (m *Manager) Disconnect(roomCode, participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.sessions[roomCode]
	mem, ok := room[participantID]
	if !ok {
		return
	}
	delete(room, participantID)
	if len(room) == 0 {
		delete(m.sessions, roomCode)
	}
	if err := mem.session.Leave(); err != nil {
		log.Printf("voice: leave %s/%s: %v", roomCode, participantID, err)
	}
}

// CloseRoom detaches every session of a deleted room.
func (m *Manager) CloseRoom(roomCode string) {
	m.mu.Lock()
	room := m.sessions[roomCode]
	delete(m.sessions, roomCode)
	m.mu.Unlock()

	for participantID, mem := range room {
		if err := mem.session.Leave(); err != nil {
			log.Printf("voice: leave %s/%s: %v", roomCode, participantID, err)
		}
	}
}

const (
	muteAttempts = 4
	muteBackoff  = 250 * time.Millisecond
)

// applyMuted is best-effort with backoff; it stops early when a newer
// force-apply has superseded this generation.
func (m *Manager) applyMuted(session Session, muted bool, gen *uint64, want uint64) {
	backoff := muteBackoff
	for attempt := 0; attempt < muteAttempts; attempt++ {
		m.mu.Lock()
		stale := *gen != want
		m.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := session.SetMuted(ctx, muted)
		cancel()
		if err == nil {
			return
		}
		log.Printf("voice: set muted=%v attempt %d: %v", muted, attempt+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}
}
