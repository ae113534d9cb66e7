package game

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"quizparty/internal/model"
)

// Registry owns the live room engines: creation, join-code lookup, and
// removal once a room's active-participant count reaches zero.
type Registry struct {
	mu     sync.RWMutex
	byCode map[string]*Room
	byID   map[string]*Room

	timings Timings
	parser  IntentParser
	sink    EffectSink
}

func NewRegistry(t Timings, parser IntentParser, sink EffectSink) *Registry {
	return &Registry{
		byCode:  make(map[string]*Room),
		byID:    make(map[string]*Room),
		timings: t,
		parser:  parser,
		sink:    sink,
	}
}

// CreateRoom allocates a room in waiting status with no host; the creator
// becomes host on first join. The question set must cover maxStages.
func (g *Registry) CreateRoom(maxStages int, questions []model.Question) (*Room, error) {
	if maxStages < 1 || len(questions) < maxStages {
		return nil, ErrConflict
	}
	for i := range questions {
		if questions[i].Points == 0 {
			questions[i].Points = 100
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	code, err := g.generateCodeLocked()
	if err != nil {
		return nil, err
	}
	id := "r_" + uuid.New().String()[:8]
	room := NewRoom(id, code, maxStages, questions, g.timings, g.parser, registrySink{g})
	g.byCode[code] = room
	g.byID[id] = room
	return room, nil
}

// FindJoinable returns the room for a join code, excluding finished rooms.
func (g *Registry) FindJoinable(code string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.byCode[code]
	g.mu.RUnlock()
	if !ok || room.Status() == model.RoomFinished {
		return nil, ErrNotFound
	}
	return room, nil
}

// Find returns the room for a join code regardless of status.
func (g *Registry) Find(code string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.byCode[code]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return room, nil
}

// Discard withdraws a room that never became usable, e.g. when the
// creation flow failed to persist it. The engine shuts down without the
// usual deletion effects: nothing downstream observed the room yet.
func (g *Registry) Discard(roomID string) {
	g.mu.Lock()
	room, ok := g.byID[roomID]
	if ok {
		delete(g.byID, roomID)
		delete(g.byCode, room.Code())
	}
	g.mu.Unlock()
	if ok {
		room.shutdown()
	}
}

func (g *Registry) remove(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.byID[roomID]
	if !ok {
		return
	}
	delete(g.byID, roomID)
	delete(g.byCode, room.Code())
}

// Snapshots returns the current state of every live room, used by the
// periodic reconciliation pass.
func (g *Registry) Snapshots() []*model.RoomSnapshot {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.byID))
	for _, room := range g.byID {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()

	out := make([]*model.RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Snapshot())
	}
	return out
}

// generateCodeLocked creates a 6-char code from an unambiguous alphabet.
func (g *Registry) generateCodeLocked() (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLen = 6

	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLen)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		code := make([]byte, codeLen)
		for i := range code {
			code[i] = chars[int(b[i])%len(chars)]
		}
		if _, taken := g.byCode[string(code)]; !taken {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("failed to generate unique room code")
}

// registrySink drops deleted rooms from the registry before the outer sink
// runs, so a join against the old code fails within the same cycle.
type registrySink struct {
	g *Registry
}

func (s registrySink) Apply(eff Effects) {
	if eff.Deleted {
		s.g.remove(eff.RoomID)
	}
	s.g.sink.Apply(eff)
}
