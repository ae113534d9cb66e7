package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizparty/internal/cache"
	"quizparty/internal/game"
	"quizparty/internal/model"
	"quizparty/internal/voice"
)

type fakeRoomRepo struct {
	mu          sync.Mutex
	rooms       map[string]*model.Room
	failUpserts int
}

func (r *fakeRoomRepo) Upsert(ctx context.Context, room *model.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpserts > 0 {
		r.failUpserts--
		return errors.New("mongo down")
	}
	cp := *room
	r.rooms[room.ID] = &cp
	return nil
}

func (r *fakeRoomRepo) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.Code == code {
			cp := *room
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRoomRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, id)
	return nil
}

func (r *fakeRoomRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

type fakePartRepo struct {
	mu    sync.Mutex
	parts map[string]*model.Participant
}

func (r *fakePartRepo) Upsert(ctx context.Context, p *model.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.parts[p.ID] = &cp
	return nil
}

func (r *fakePartRepo) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.parts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePartRepo) GetByRoom(ctx context.Context, roomID string) ([]*model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Participant
	for _, p := range r.parts {
		if p.RoomID == roomID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeAnswerRepo struct {
	mu      sync.Mutex
	answers []*model.StageAnswer
}

func (r *fakeAnswerRepo) Append(ctx context.Context, a *model.StageAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.answers = append(r.answers, &cp)
	return nil
}

func (r *fakeAnswerRepo) GetByRoom(ctx context.Context, roomID string) ([]*model.StageAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.StageAnswer
	for _, a := range r.answers {
		if a.RoomID == roomID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAnswerRepo) GetByParticipant(ctx context.Context, participantID string) ([]*model.StageAnswer, error) {
	return nil, nil
}

func (r *fakeAnswerRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.answers)
}

type fakeRoomCache struct {
	mu    sync.Mutex
	metas map[string]*model.RoomMeta
}

func (c *fakeRoomCache) SetMeta(ctx context.Context, code string, meta *model.RoomMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *meta
	c.metas[code] = &cp
	return nil
}

func (c *fakeRoomCache) GetMeta(ctx context.Context, code string) (*model.RoomMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.metas[code]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (c *fakeRoomCache) Delete(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metas, code)
	return nil
}

func (c *fakeRoomCache) Exists(ctx context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.metas[code]
	return ok, nil
}

type fakeScores struct {
	mu     sync.Mutex
	scores map[string]map[string]int
}

func (c *fakeScores) UpdateScore(ctx context.Context, roomCode, participantID string, score int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scores[roomCode] == nil {
		c.scores[roomCode] = make(map[string]int)
	}
	c.scores[roomCode][participantID] = score
	return nil
}

func (c *fakeScores) GetTop(ctx context.Context, roomCode string, limit int) ([]cache.ScoreEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entries []cache.ScoreEntry
	for pid, score := range c.scores[roomCode] {
		entries = append(entries, cache.ScoreEntry{ParticipantID: pid, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *fakeScores) GetRank(ctx context.Context, roomCode, participantID string) (int64, error) {
	return 0, nil
}

func (c *fakeScores) DeleteRoom(ctx context.Context, roomCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scores, roomCode)
	return nil
}

type published struct {
	eventType string
	roomCode  string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) PublishSnapshot(ctx context.Context, eventType string, snap *model.RoomSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType: eventType, roomCode: snap.Code})
	return nil
}

func (p *fakePublisher) PublishDeleted(ctx context.Context, roomCode string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType: model.EventRoomDeleted, roomCode: roomCode})
	return nil
}

func (p *fakePublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.eventType == eventType {
			return true
		}
	}
	return false
}

type nopSession struct{}

func (nopSession) SetMuted(ctx context.Context, muted bool) error { return nil }
func (nopSession) Leave() error                                   { return nil }

type fakeVoice struct {
	mu          sync.Mutex
	connects    []string // roomCode/participantID
	applies     []map[string]bool
	closedRooms []string
}

func (v *fakeVoice) Connect(ctx context.Context, roomCode, participantID string) (voice.Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connects = append(v.connects, roomCode+"/"+participantID)
	return nopSession{}, nil
}

func (v *fakeVoice) ForceApply(roomCode string, allowed map[string]bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.applies = append(v.applies, allowed)
}

func (v *fakeVoice) Disconnect(roomCode, participantID string) {}

func (v *fakeVoice) CloseRoom(roomCode string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closedRooms = append(v.closedRooms, roomCode)
}

func (v *fakeVoice) roomClosed(code string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range v.closedRooms {
		if c == code {
			return true
		}
	}
	return false
}

type fakeBroadcaster struct {
	mu           sync.Mutex
	disconnected []string
}

func (b *fakeBroadcaster) DisconnectRoom(roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, roomCode)
}

type serviceFixture struct {
	svc       *RoomService
	roomRepo  *fakeRoomRepo
	partRepo  *fakePartRepo
	answers   *fakeAnswerRepo
	roomCache *fakeRoomCache
	scores    *fakeScores
	publisher *fakePublisher
	voiceMgr  *fakeVoice
	bcast     *fakeBroadcaster
}

func newFixture(t game.Timings) *serviceFixture {
	f := &serviceFixture{
		roomRepo:  &fakeRoomRepo{rooms: make(map[string]*model.Room)},
		partRepo:  &fakePartRepo{parts: make(map[string]*model.Participant)},
		answers:   &fakeAnswerRepo{},
		roomCache: &fakeRoomCache{metas: make(map[string]*model.RoomMeta)},
		scores:    &fakeScores{scores: make(map[string]map[string]int)},
		publisher: &fakePublisher{},
		voiceMgr:  &fakeVoice{},
		bcast:     &fakeBroadcaster{},
	}
	f.svc = NewRoomService(
		t,
		f.roomRepo, f.partRepo, f.answers,
		f.roomCache, f.scores, f.publisher, f.voiceMgr,
		NewAuthService("admin", "password123", "test-secret"),
	)
	f.svc.SetBroadcaster(f.bcast)
	return f
}

var frozen = game.Timings{Reading: time.Hour, Answering: time.Hour, ResolvedDwell: time.Hour}

func questions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Prompt:  "capital?",
			Choices: []model.Choice{{Label: "A", Text: "Amsterdam"}, {Label: "B", Text: "Berlin"}},
			Answer:  "A",
			Points:  100,
		}
	}
	return qs
}

func TestCreateRoom_PersistsRecordAndMeta(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)

	assert.Len(t, room.Code, 6)
	assert.Equal(t, model.RoomWaiting, room.Status)

	stored, err := f.roomRepo.GetByCode(ctx, room.Code)
	require.NoError(t, err)
	require.NotNil(t, stored)

	meta, err := f.roomCache.GetMeta(ctx, room.Code)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, room.ID, meta.RoomID)
}

func TestJoinRoom_ReturnsScopedToken(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)

	resp, err := f.svc.JoinRoom(ctx, room.Code, "user-a", "Alice")
	require.NoError(t, err)
	assert.Equal(t, room.ID, resp.RoomID)
	assert.NotEmpty(t, resp.ParticipantID)
	assert.Equal(t, resp.ParticipantID, resp.HostID, "first joiner becomes host")

	claims, err := f.svc.authSvc.ValidateParticipantToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, room.Code, claims.RoomCode)
	assert.Equal(t, resp.ParticipantID, claims.ParticipantID)
	assert.Equal(t, "user-a", claims.UserID)

	// Membership record lands asynchronously through the effect sink.
	require.Eventually(t, func() bool {
		p, _ := f.partRepo.GetByID(ctx, resp.ParticipantID)
		return p != nil && p.Status == model.ParticipantActive
	}, time.Second, 5*time.Millisecond)
}

func TestJoinRoom_UnknownCode(t *testing.T) {
	f := newFixture(frozen)

	_, err := f.svc.JoinRoom(context.Background(), "NOPE42", "user-a", "Alice")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestSubmitAnswer_RecordsLogAndScores(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)

	a, err := f.svc.JoinRoom(ctx, room.Code, "user-a", "Alice")
	require.NoError(t, err)
	_, err = f.svc.JoinRoom(ctx, room.Code, "user-b", "Bob")
	require.NoError(t, err)

	require.NoError(t, f.svc.StartGame(ctx, room.Code, "user-a"))
	require.NoError(t, f.svc.Ready(ctx, room.Code, "user-a"))

	accepted, err := f.svc.SubmitAnswer(ctx, room.Code, "user-a", "A")
	require.NoError(t, err)
	assert.True(t, accepted)

	require.Eventually(t, func() bool { return f.answers.count() == 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		entries, _ := f.scores.GetTop(ctx, room.Code, 10)
		return len(entries) > 0 && entries[0].ParticipantID == a.ParticipantID && entries[0].Score == 100
	}, time.Second, 5*time.Millisecond)

	lb, err := f.svc.Leaderboard(ctx, room.Code, 10)
	require.NoError(t, err)
	require.NotEmpty(t, lb)
	assert.Equal(t, a.ParticipantID, lb[0].ParticipantID)
}

func TestLeaveRoom_LastLeaverTearsEverythingDown(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)

	_, err = f.svc.JoinRoom(ctx, room.Code, "user-a", "Alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.LeaveRoom(ctx, room.Code, "user-a"))

	require.Eventually(t, func() bool {
		return f.roomRepo.count() == 0 &&
			f.publisher.has(model.EventRoomDeleted) &&
			f.voiceMgr.roomClosed(room.Code) &&
			len(f.bcast.disconnected) == 1
	}, time.Second, 5*time.Millisecond)

	meta, err := f.roomCache.GetMeta(ctx, room.Code)
	require.NoError(t, err)
	assert.Nil(t, meta)

	_, err = f.svc.JoinRoom(ctx, room.Code, "user-b", "Bob")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestConnectVoice_AttachesAndReapplies(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)
	a, err := f.svc.JoinRoom(ctx, room.Code, "user-a", "Alice")
	require.NoError(t, err)

	_, err = f.svc.ConnectVoice(ctx, room.Code, a.ParticipantID)
	require.NoError(t, err)

	f.voiceMgr.mu.Lock()
	defer f.voiceMgr.mu.Unlock()
	require.Contains(t, f.voiceMgr.connects, room.Code+"/"+a.ParticipantID)
	require.NotEmpty(t, f.voiceMgr.applies)
	// Nobody is answering yet, so nobody may speak.
	for _, allowed := range f.voiceMgr.applies[len(f.voiceMgr.applies)-1] {
		assert.False(t, allowed)
	}
}

func TestConnectVoice_RejectsForeignParticipant(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	roomA, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)
	roomB, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)

	a, err := f.svc.JoinRoom(ctx, roomA.Code, "user-a", "Alice")
	require.NoError(t, err)

	// A membership in room A grants nothing in room B.
	_, err = f.svc.ConnectVoice(ctx, roomB.Code, a.ParticipantID)
	assert.ErrorIs(t, err, game.ErrForbidden)

	f.voiceMgr.mu.Lock()
	assert.Empty(t, f.voiceMgr.connects, "rejected attach never reaches the transport")
	f.voiceMgr.mu.Unlock()

	// A participant who left is no longer a member either.
	_, err = f.svc.JoinRoom(ctx, roomA.Code, "user-b", "Bob")
	require.NoError(t, err)
	require.NoError(t, f.svc.LeaveRoom(ctx, roomA.Code, "user-a"))
	_, err = f.svc.ConnectVoice(ctx, roomA.Code, a.ParticipantID)
	assert.ErrorIs(t, err, game.ErrForbidden)
}

func TestCreateRoom_PersistenceFailureWithdrawsRoom(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	f.roomRepo.mu.Lock()
	f.roomRepo.failUpserts = 1
	f.roomRepo.mu.Unlock()

	_, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.Error(t, err)

	// No live engine survives a failed create: nothing is joinable and
	// the reconciler sees nothing.
	assert.Empty(t, f.svc.registry.Snapshots())
	assert.Equal(t, 0, f.roomRepo.count())
}

func TestStartGame_ForbiddenAndConflictSurface(t *testing.T) {
	f := newFixture(frozen)
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, 3, questions(3))
	require.NoError(t, err)
	_, err = f.svc.JoinRoom(ctx, room.Code, "user-a", "Alice")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.StartGame(ctx, room.Code, "user-a"), game.ErrConflict)

	_, err = f.svc.JoinRoom(ctx, room.Code, "user-b", "Bob")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.StartGame(ctx, room.Code, "user-b"), game.ErrForbidden)
}
