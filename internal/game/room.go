package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizparty/internal/model"
)

// Timings holds the per-stage timer durations. FinishedLinger bounds how
// long a finished room stays resident for late leaderboard reads before
// it is evicted; zero disables eviction.
type Timings struct {
	Reading        time.Duration
	Answering      time.Duration
	ResolvedDwell  time.Duration
	FinishedLinger time.Duration
}

// Effects is everything a committed transition produced. The engine never
// performs I/O itself: effects are queued per room and applied in commit
// order by the sink, outside the room lock.
type Effects struct {
	RoomID string

	// Room is the durable room record after the transition. Upserted
	// idempotently, so it is included on every change.
	Room *model.Room

	// Participants whose records changed.
	Participants []*model.Participant

	// Answer is a new append-only log row, if the transition recorded one.
	Answer *model.StageAnswer

	// Snapshot is the full reconciliation state to push to observers.
	Snapshot *model.RoomSnapshot

	// Voice is the speaking-allowed state for every known participant.
	// Force-applied, never toggled incrementally.
	Voice map[string]bool

	// Deleted means the room reached zero active participants and was
	// destroyed with its dependent state.
	Deleted bool

	// Finished means the room just completed its final stage.
	Finished bool
}

// EffectSink receives committed effects, one room's effects in order.
type EffectSink interface {
	Apply(eff Effects)
}

// Room is the single-writer coordination unit for one quiz session. All
// mutations take the room mutex, compute effects, and queue them; the pump
// goroutine hands them to the sink so no I/O runs under the lock. Rooms
// never share locks with each other.
type Room struct {
	mu sync.Mutex

	id        string
	code      string
	status    model.RoomStatus
	hostID    string
	stage     int
	maxStages int
	questions []model.Question

	parts  map[string]*model.Participant // by participant id
	byUser map[string]string             // user id -> participant id

	queue  turnQueue
	active *model.ActiveQuestion

	timings Timings
	parser  IntentParser
	now     func() time.Time

	timer    *time.Timer
	timerSeq uint64

	closed  bool
	effects chan Effects
	done    chan struct{}
}

// NewRoom builds a room engine in waiting status and starts its effect
// pump. The creator becomes host on first join.
func NewRoom(id, code string, maxStages int, questions []model.Question, t Timings, parser IntentParser, sink EffectSink) *Room {
	r := &Room{
		id:        id,
		code:      code,
		status:    model.RoomWaiting,
		maxStages: maxStages,
		questions: questions,
		parts:     make(map[string]*model.Participant),
		byUser:    make(map[string]string),
		timings:   t,
		parser:    parser,
		now:       time.Now,
		effects:   make(chan Effects, 256),
		done:      make(chan struct{}),
	}
	go r.pump(sink)
	return r
}

func (r *Room) pump(sink EffectSink) {
	defer close(r.done)
	for eff := range r.effects {
		sink.Apply(eff)
	}
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Code() string { return r.code }

func (r *Room) Status() model.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot returns the full current state for reconciliation.
func (r *Room) Snapshot() *model.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Join admits a user, re-admits one who previously left (progress reset),
// and is a no-op for a duplicate join of an active participant. Eliminated
// users cannot re-enter this room instance.
func (r *Room) Join(userID, nickname string) (*model.Participant, error) {
	r.mu.Lock()
	if r.closed || r.status == model.RoomFinished {
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	if pid, ok := r.byUser[userID]; ok {
		p := r.parts[pid]
		switch p.Status {
		case model.ParticipantActive:
			cp := *p
			r.mu.Unlock()
			return &cp, nil
		case model.ParticipantEliminated:
			r.mu.Unlock()
			return nil, ErrForbidden
		case model.ParticipantLeft:
			// Re-join restarts in-room progress rather than resuming it.
			p.Status = model.ParticipantActive
			p.Lives = model.InitialLives
			p.TotalScore = 0
			p.JoinedAt = r.now()
			r.queue.push(p.ID)
			if r.hostID == "" {
				r.hostID = p.ID
			}
			cp := *p
			r.emitLocked(Effects{Participants: []*model.Participant{&cp}})
			r.mu.Unlock()
			return &cp, nil
		}
	}

	p := &model.Participant{
		ID:       "p_" + uuid.New().String()[:8],
		RoomID:   r.id,
		UserID:   userID,
		Nickname: nickname,
		Status:   model.ParticipantActive,
		Lives:    model.InitialLives,
		JoinedAt: r.now(),
	}
	r.parts[p.ID] = p
	r.byUser[userID] = p.ID
	r.queue.push(p.ID)
	if r.hostID == "" {
		r.hostID = p.ID
	}
	cp := *p
	r.emitLocked(Effects{Participants: []*model.Participant{&cp}})
	r.mu.Unlock()
	return &cp, nil
}

// Leave marks the participant as left. Leaving mid-turn discards the
// unresolved question without charging anyone a life; the same stage is
// re-attempted by the next holder. A second leave is an idempotent ack.
func (r *Room) Leave(userID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrNotFound
	}
	pid, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	p := r.parts[pid]
	if p.Status != model.ParticipantActive {
		r.mu.Unlock()
		return nil
	}
	r.removeLocked(p, model.ParticipantLeft)
	r.mu.Unlock()
	return nil
}

// Start begins the game: host only, at least two active participants.
func (r *Room) Start(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrNotFound
	}
	pid, ok := r.byUser[userID]
	if !ok {
		return ErrNotFound
	}
	if pid != r.hostID {
		return ErrForbidden
	}
	if r.status != model.RoomWaiting {
		return ErrConflict
	}
	if r.activeCountLocked() < 2 {
		return ErrConflict
	}
	r.status = model.RoomPlaying
	r.stage = 0
	r.beginStageLocked()
	r.emitLocked(Effects{})
	return nil
}

// Ready is the turn holder's explicit reading -> answering signal. The
// reading timer fires the same transition if the holder never signals.
func (r *Room) Ready(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.status != model.RoomPlaying || r.active == nil {
		return ErrNotFound
	}
	pid, ok := r.byUser[userID]
	if !ok {
		return ErrNotFound
	}
	if pid != r.active.TurnHolderID {
		return ErrForbidden
	}
	if r.active.Phase != model.PhaseReading {
		return ErrConflict
	}
	r.toAnsweringLocked()
	r.emitLocked(Effects{})
	return nil
}

// Submit resolves the active question with the holder's answer. A call
// from a non-holder or outside the answering phase is rejected silently
// (accepted=false) so a racing timeout and submission cannot both commit.
func (r *Room) Submit(userID, text string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrNotFound
	}
	pid, ok := r.byUser[userID]
	if !ok {
		return false, ErrNotFound
	}
	if r.status != model.RoomPlaying || r.active == nil || r.active.Phase != model.PhaseAnswering {
		return false, nil
	}
	if pid != r.active.TurnHolderID {
		return false, nil
	}

	// Unparseable input is rejected, not punished: the phase stays
	// answering, no life is charged, and the holder can try again until
	// the deadline.
	label, parsed := r.parser.Parse(text, r.active.Question.Choices)
	if !parsed {
		return false, nil
	}

	p := r.parts[pid]
	r.resolveLocked(p, text, label, label == r.active.Question.Answer, false)
	return true, nil
}

// removeLocked is the shared leave/eliminate cascade: status change, queue
// removal, host reassignment, turn skip, empty-room deletion.
func (r *Room) removeLocked(p *model.Participant, status model.ParticipantStatus) {
	p.Status = status

	wasHolder := r.active != nil && r.active.TurnHolderID == p.ID &&
		r.active.Phase != model.PhaseResolved
	r.queue.remove(p.ID)
	if r.hostID == p.ID {
		r.hostID = r.earliestActiveLocked()
	}

	cp := *p
	if r.activeCountLocked() == 0 {
		r.deleteLocked(Effects{Participants: []*model.Participant{&cp}})
		return
	}
	if wasHolder && r.status == model.RoomPlaying {
		r.skipHolderLocked()
	}
	r.emitLocked(Effects{Participants: []*model.Participant{&cp}})
}

// skipHolderLocked discards the unresolved question and reopens the same
// stage index for the new queue head. No answer row, no life deducted.
func (r *Room) skipHolderLocked() {
	r.active = nil
	if _, ok := r.queue.head(); ok {
		r.beginStageLocked()
	}
}

func (r *Room) beginStageLocked() {
	holder, ok := r.queue.head()
	if !ok {
		return
	}
	r.active = &model.ActiveQuestion{
		RoomID:       r.id,
		StageIndex:   r.stage,
		Question:     r.questions[r.stage],
		Phase:        model.PhaseReading,
		TurnHolderID: holder,
	}
	r.scheduleLocked(r.timings.Reading, func() {
		if r.status == model.RoomPlaying && r.active != nil && r.active.Phase == model.PhaseReading {
			r.toAnsweringLocked()
			r.emitLocked(Effects{})
		}
	})
}

func (r *Room) toAnsweringLocked() {
	r.active.Phase = model.PhaseAnswering
	deadline := r.now().Add(r.timings.Answering)
	r.active.Deadline = &deadline
	holderID := r.active.TurnHolderID
	stage := r.active.StageIndex
	r.scheduleLocked(r.timings.Answering, func() {
		// Deadline expiry is an incorrect answer for the holder.
		if r.status != model.RoomPlaying || r.active == nil ||
			r.active.Phase != model.PhaseAnswering || r.active.StageIndex != stage {
			return
		}
		p, ok := r.parts[holderID]
		if !ok || p.Status != model.ParticipantActive {
			return
		}
		r.resolveLocked(p, "", "", false, true)
	})
}

func (r *Room) resolveLocked(p *model.Participant, text, label string, correct, timedOut bool) {
	points := 0
	if correct {
		points = r.active.Question.Points
		p.TotalScore += points
	} else {
		p.Lives--
	}

	ans := &model.StageAnswer{
		RoomID:        r.id,
		StageIndex:    r.active.StageIndex,
		ParticipantID: p.ID,
		Text:          text,
		Choice:        label,
		Correct:       correct,
		Points:        points,
		TimedOut:      timedOut,
		AnsweredAt:    r.now(),
	}

	r.active.Phase = model.PhaseResolved
	r.active.Deadline = nil

	if !correct && p.Lives <= 0 {
		p.Status = model.ParticipantEliminated
		r.queue.remove(p.ID)
		if r.hostID == p.ID {
			r.hostID = r.earliestActiveLocked()
		}
	}

	cp := *p
	if r.activeCountLocked() == 0 {
		r.deleteLocked(Effects{Answer: ans, Participants: []*model.Participant{&cp}})
		return
	}

	r.scheduleLocked(r.timings.ResolvedDwell, func() {
		r.advanceLocked()
	})
	r.emitLocked(Effects{Answer: ans, Participants: []*model.Participant{&cp}})
}

// advanceLocked rotates the turn queue and opens the next stage, or
// finishes the room when the stage sequence is exhausted.
func (r *Room) advanceLocked() {
	if r.status != model.RoomPlaying {
		return
	}
	if r.active != nil {
		if head, ok := r.queue.head(); ok && head == r.active.TurnHolderID {
			r.queue.rotate()
		}
	}
	r.stage++
	if r.stage >= r.maxStages {
		r.finishLocked()
		return
	}
	r.active = nil
	r.beginStageLocked()
	r.emitLocked(Effects{})
}

func (r *Room) finishLocked() {
	r.status = model.RoomFinished
	r.active = nil
	r.cancelTimerLocked()
	r.emitLocked(Effects{Finished: true})

	// Abandoned finished rooms never see their participants leave;
	// evict after the linger window instead of lingering forever.
	if r.timings.FinishedLinger > 0 {
		r.scheduleLocked(r.timings.FinishedLinger, func() {
			r.deleteLocked(Effects{})
		})
	}
}

// deleteLocked destroys the room: the zero-active-participant invariant.
// The final effect carries Deleted so the registry and persistence layer
// tear down dependent state.
func (r *Room) deleteLocked(eff Effects) {
	r.cancelTimerLocked()
	r.closed = true
	r.active = nil
	eff.Deleted = true
	r.emitLocked(eff)
	close(r.effects)
}

// shutdown closes the engine without emitting effects. Only for rooms
// being withdrawn before anything downstream observed them.
func (r *Room) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.cancelTimerLocked()
	r.closed = true
	close(r.effects)
}

func (r *Room) scheduleLocked(d time.Duration, fn func()) {
	r.timerSeq++
	seq := r.timerSeq
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// A transition that already happened supersedes this timer.
		if r.closed || seq != r.timerSeq {
			return
		}
		fn()
	})
}

func (r *Room) cancelTimerLocked() {
	r.timerSeq++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) activeCountLocked() int {
	n := 0
	for _, p := range r.parts {
		if p.Status == model.ParticipantActive {
			n++
		}
	}
	return n
}

// earliestActiveLocked picks the deterministic host successor: the
// earliest-joined remaining active participant.
func (r *Room) earliestActiveLocked() string {
	var best *model.Participant
	for _, p := range r.parts {
		if p.Status != model.ParticipantActive {
			continue
		}
		if best == nil || p.JoinedAt.Before(best.JoinedAt) ||
			(p.JoinedAt.Equal(best.JoinedAt) && p.ID < best.ID) {
			best = p
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// voiceStatesLocked derives speaking permission for every known
// participant from scratch. At most one entry is ever true.
func (r *Room) voiceStatesLocked() map[string]bool {
	states := make(map[string]bool, len(r.parts))
	for id, p := range r.parts {
		allowed := false
		if r.active != nil && r.active.Phase == model.PhaseAnswering &&
			p.Status == model.ParticipantActive && id == r.active.TurnHolderID {
			allowed = true
		}
		states[id] = allowed
	}
	return states
}

func (r *Room) roomRecordLocked() *model.Room {
	return &model.Room{
		ID:                r.id,
		Code:              r.code,
		Status:            r.status,
		HostParticipantID: r.hostID,
		CurrentStageIndex: r.stage,
		MaxStages:         r.maxStages,
	}
}

func (r *Room) snapshotLocked() *model.RoomSnapshot {
	views := make([]model.ParticipantView, 0, len(r.parts))
	for _, p := range r.parts {
		views = append(views, model.ParticipantView{
			ID:         p.ID,
			Nickname:   p.Nickname,
			Status:     p.Status,
			Lives:      p.Lives,
			TotalScore: p.TotalScore,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	var active *model.ActiveQuestion
	if r.active != nil {
		cp := *r.active
		active = &cp
	}
	return &model.RoomSnapshot{
		RoomID:       r.id,
		Code:         r.code,
		Status:       r.status,
		HostID:       r.hostID,
		StageIndex:   r.stage,
		MaxStages:    r.maxStages,
		Participants: views,
		TurnOrder:    r.queue.snapshot(),
		Active:       active,
		GeneratedAt:  r.now(),
	}
}

// emitLocked fills in the always-carried fields and queues the effect.
// The channel send is the enqueue step; the pump applies I/O unlocked.
func (r *Room) emitLocked(eff Effects) {
	eff.RoomID = r.id
	eff.Room = r.roomRecordLocked()
	eff.Snapshot = r.snapshotLocked()
	eff.Voice = r.voiceStatesLocked()
	r.effects <- eff
}
