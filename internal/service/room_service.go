package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"quizparty/internal/cache"
	"quizparty/internal/events"
	"quizparty/internal/game"
	"quizparty/internal/model"
	"quizparty/internal/repository"
	"quizparty/internal/voice"
)

const applyTimeout = 5 * time.Second

// RoomService exposes the coordinator's external operations and applies
// the engine's committed effects against the persistence, notification,
// and voice layers. It is the engines' EffectSink: effects arrive here in
// commit order, after the room lock is released.
type RoomService struct {
	registry *game.Registry

	roomRepo   repository.RoomRepo
	partRepo   repository.ParticipantRepo
	answerRepo repository.AnswerRepo
	roomCache  cache.RoomCache
	scores     cache.ScoreCache
	publisher  events.Publisher
	voiceMgr   VoiceEnforcer
	authSvc    *AuthService

	broadcaster Broadcaster
}

func NewRoomService(
	timings game.Timings,
	roomRepo repository.RoomRepo,
	partRepo repository.ParticipantRepo,
	answerRepo repository.AnswerRepo,
	roomCache cache.RoomCache,
	scores cache.ScoreCache,
	publisher events.Publisher,
	voiceMgr VoiceEnforcer,
	authSvc *AuthService,
) *RoomService {
	s := &RoomService{
		roomRepo:   roomRepo,
		partRepo:   partRepo,
		answerRepo: answerRepo,
		roomCache:  roomCache,
		scores:     scores,
		publisher:  publisher,
		voiceMgr:   voiceMgr,
		authSvc:    authSvc,
	}
	s.registry = game.NewRegistry(timings, game.NewChoiceMatcher(), s)
	return s
}

// SetBroadcaster sets the websocket hub hook for room teardown.
func (s *RoomService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateRoom allocates a new room with its question set.
func (s *RoomService) CreateRoom(ctx context.Context, maxStages int, questions []model.Question) (*model.Room, error) {
	room, err := s.registry.CreateRoom(maxStages, questions)
	if err != nil {
		return nil, err
	}

	snap := room.Snapshot()
	record := &model.Room{
		ID:        snap.RoomID,
		Code:      snap.Code,
		Status:    snap.Status,
		MaxStages: snap.MaxStages,
		CreatedAt: time.Now(),
	}
	// A room without a durable record must not stay joinable.
	if err := s.roomRepo.Upsert(ctx, record); err != nil {
		s.registry.Discard(snap.RoomID)
		return nil, fmt.Errorf("failed to persist room: %w", err)
	}
	if err := s.roomCache.SetMeta(ctx, snap.Code, &model.RoomMeta{
		RoomID:    snap.RoomID,
		Code:      snap.Code,
		Status:    snap.Status,
		MaxStages: snap.MaxStages,
		CreatedAt: record.CreatedAt,
	}); err != nil {
		s.registry.Discard(snap.RoomID)
		if derr := s.roomRepo.Delete(ctx, snap.RoomID); derr != nil {
			log.Printf("room %s: rollback record: %v", snap.Code, derr)
		}
		return nil, fmt.Errorf("failed to cache room: %w", err)
	}
	return record, nil
}

// JoinRoom admits a user into the room behind a join code.
func (s *RoomService) JoinRoom(ctx context.Context, code, userID, nickname string) (*model.JoinResponse, error) {
	room, err := s.registry.FindJoinable(code)
	if err != nil {
		return nil, err
	}

	p, err := room.Join(userID, nickname)
	if err != nil {
		return nil, err
	}

	token, err := s.authSvc.GenerateParticipantToken(code, p.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.JoinResponse{
		RoomID:        room.ID(),
		ParticipantID: p.ID,
		HostID:        room.Snapshot().HostID,
		Token:         token,
	}, nil
}

// LeaveRoom marks the participant as left, with the full turn-advance,
// host-reassign, and empty-room cascade.
func (s *RoomService) LeaveRoom(ctx context.Context, code, userID string) error {
	room, err := s.registry.Find(code)
	if err != nil {
		return err
	}
	return room.Leave(userID)
}

// StartGame opens stage 0. Host only; needs at least two active
// participants.
func (s *RoomService) StartGame(ctx context.Context, code, userID string) error {
	room, err := s.registry.Find(code)
	if err != nil {
		return err
	}
	return room.Start(userID)
}

// Ready is the turn holder's reading-phase skip.
func (s *RoomService) Ready(ctx context.Context, code, userID string) error {
	room, err := s.registry.Find(code)
	if err != nil {
		return err
	}
	return room.Ready(userID)
}

// SubmitAnswer resolves the active question if the caller holds the turn
// and the phase allows it; otherwise accepted is false with no mutation.
func (s *RoomService) SubmitAnswer(ctx context.Context, code, userID, text string) (accepted bool, err error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return false, err
	}
	return room.Submit(userID, text)
}

// ConnectVoice attaches the participant to the room's voice channel and
// immediately re-applies the gate so a reconnect converges to the correct
// mute state. Only active participants of this room may attach.
func (s *RoomService) ConnectVoice(ctx context.Context, code, participantID string) (voice.Session, error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return nil, err
	}

	snap := room.Snapshot()
	member := false
	for _, p := range snap.Participants {
		if p.ID == participantID && p.Status == model.ParticipantActive {
			member = true
			break
		}
	}
	if !member {
		return nil, game.ErrForbidden
	}

	session, err := s.voiceMgr.Connect(ctx, code, participantID)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(snap.Participants))
	for _, p := range snap.Participants {
		var phase model.Phase
		var holder string
		if snap.Active != nil {
			phase = snap.Active.Phase
			holder = snap.Active.TurnHolderID
		}
		allowed[p.ID] = voice.SpeakingAllowed(phase, holder, p.ID)
	}
	s.voiceMgr.ForceApply(code, allowed)
	return session, nil
}

// Snapshot returns the room's full reconciliation state.
func (s *RoomService) Snapshot(code string) (*model.RoomSnapshot, error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return nil, err
	}
	return room.Snapshot(), nil
}

// Leaderboard returns per-room totals, best first.
func (s *RoomService) Leaderboard(ctx context.Context, code string, limit int) ([]cache.ScoreEntry, error) {
	if _, err := s.registry.Find(code); err != nil {
		return nil, err
	}
	return s.scores.GetTop(ctx, code, limit)
}

// Apply implements game.EffectSink. A failure here is logged, never
// propagated back into game state: mutations were already committed.
func (s *RoomService) Apply(eff game.Effects) {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	code := eff.Room.Code

	for _, p := range eff.Participants {
		if err := s.partRepo.Upsert(ctx, p); err != nil {
			log.Printf("room %s: persist participant %s: %v", code, p.ID, err)
		}
		if err := s.scores.UpdateScore(ctx, code, p.ID, p.TotalScore); err != nil {
			log.Printf("room %s: update score %s: %v", code, p.ID, err)
		}
	}
	if eff.Answer != nil {
		if err := s.answerRepo.Append(ctx, eff.Answer); err != nil {
			log.Printf("room %s: append answer: %v", code, err)
		}
	}

	if eff.Deleted {
		if err := s.roomRepo.Delete(ctx, eff.RoomID); err != nil {
			log.Printf("room %s: delete record: %v", code, err)
		}
		if err := s.roomCache.Delete(ctx, code); err != nil {
			log.Printf("room %s: drop cache: %v", code, err)
		}
		if err := s.scores.DeleteRoom(ctx, code); err != nil {
			log.Printf("room %s: drop scores: %v", code, err)
		}
		if err := s.publisher.PublishDeleted(ctx, code); err != nil {
			log.Printf("room %s: publish delete: %v", code, err)
		}
		s.voiceMgr.CloseRoom(code)
		if s.broadcaster != nil {
			s.broadcaster.DisconnectRoom(code)
		}
		return
	}

	if err := s.roomRepo.Upsert(ctx, eff.Room); err != nil {
		log.Printf("room %s: persist record: %v", code, err)
	}
	if err := s.roomCache.SetMeta(ctx, code, &model.RoomMeta{
		RoomID:    eff.Room.ID,
		Code:      code,
		Status:    eff.Room.Status,
		HostID:    eff.Room.HostParticipantID,
		MaxStages: eff.Room.MaxStages,
	}); err != nil {
		log.Printf("room %s: cache meta: %v", code, err)
	}

	eventType := model.EventRoomUpdated
	switch {
	case eff.Finished:
		eventType = model.EventGameFinished
	case eff.Answer != nil:
		eventType = model.EventStageAnswer
	}
	if err := s.publisher.PublishSnapshot(ctx, eventType, eff.Snapshot); err != nil {
		log.Printf("room %s: publish snapshot: %v", code, err)
	}

	s.voiceMgr.ForceApply(code, eff.Voice)
}

// RunReconciler republishes every live room's snapshot on the given
// interval, the explicit periodic pass backing the push channel. Blocks
// until ctx is cancelled.
func (s *RoomService) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snap := range s.registry.Snapshots() {
				if err := s.publisher.PublishSnapshot(ctx, model.EventRoomUpdated, snap); err != nil {
					log.Printf("reconcile room %s: %v", snap.Code, err)
				}
			}
		}
	}
}
