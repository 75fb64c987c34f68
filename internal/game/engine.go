package game

import (
	"errors"
	"sync"
	"time"

	"playsync/internal/logger"
)

// Timing holds the round cycle constants. Tests inject millisecond values.
type Timing struct {
	Countdown time.Duration
	Tick      time.Duration
	Reveal    time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Countdown: 4 * time.Second,
		Tick:      1 * time.Second,
		Reveal:    1500 * time.Millisecond,
	}
}

// Broadcaster receives engine events for fan-out to room subscribers.
// Implementations must not block: the engine calls these from its run loop
// and Stop waits for that loop to exit.
type Broadcaster interface {
	RoundTick(tick Tick)
	RoundReveal(rev Reveal)
	NewRound(round int)
	GameStopped(reason string)
}

// Tick is broadcast once per whole time unit remaining in the countdown.
type Tick struct {
	Round     int `json:"round"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Reveal is broadcast once per round when choices lock.
type Reveal struct {
	Round   int               `json:"round"`
	Choices map[string]Choice `json:"choices"`
	Winner  string            `json:"winner,omitempty"` // empty on a draw
	Outcome Outcome           `json:"outcome"`
	Scores  map[string]int    `json:"scores"`
}

// RoundRecord is an archived, immutable completed round.
type RoundRecord struct {
	Round   int               `json:"round"`
	Choices map[string]Choice `json:"choices"`
	Winner  string            `json:"winner,omitempty"`
	Outcome Outcome           `json:"outcome"`
	Scores  map[string]int    `json:"scores"`
}

// roundState is one timed decision cycle. Mutated only while running; never
// touched again after it is archived.
type roundState struct {
	startedAt time.Time
	choices   map[string]Choice
	running   bool
	completed bool
	outcome   Outcome
}

func newRoundState() *roundState {
	return &roundState{
		startedAt: time.Now(),
		choices:   make(map[string]Choice),
		running:   true,
	}
}

var (
	// ErrRoundNotActive rejects a choice submitted outside Countdown.
	ErrRoundNotActive = errors.New("round not active")
	// ErrNotAMember rejects a choice from a player outside the game.
	ErrNotAMember = errors.New("not a participant")
)

// Engine drives the countdown → lock → resolve → reveal → next-round cycle
// for one room. It runs rounds indefinitely until Stop is called. All timing
// decisions come from the server's monotonic clock; client clocks and
// client-reported results are never consulted.
type Engine struct {
	roomID  string
	players [2]string
	bc      Broadcaster
	timing  Timing

	mu       sync.Mutex
	round    *roundState
	roundNum int
	scores   map[string]int
	history  []RoundRecord
	started  bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewEngine creates an engine for an ordered pair of players. Player order is
// the room's join order and determines the player-1/player-2 mapping.
func NewEngine(roomID string, players [2]string, bc Broadcaster, timing Timing) *Engine {
	return &Engine{
		roomID:  roomID,
		players: players,
		bc:      bc,
		timing:  timing,
		scores:  map[string]int{players[0]: 0, players[1]: 0},
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the background round loop. It may be called once; starting
// an already-stopped engine is a no-op.
func (e *Engine) Start() {
	if e.stopped() {
		return
	}
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.roundNum = 1
	// The first round opens here, not in the loop, so a choice submitted
	// immediately after Start is never rejected as inactive.
	e.round = newRoundState()
	e.mu.Unlock()

	go e.run()
}

// Stop cancels the round loop and waits for it to exit, so once Stop returns
// no further tick or reveal broadcast can be emitted. Safe to call
// concurrently and repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()

	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	if !started {
		return
	}
	<-e.done
}

// RecordChoice records a player's submission for the current round.
// Repeated submissions are allowed during the countdown; the last value wins.
// Once the round has locked the submission is rejected with ErrRoundNotActive.
func (e *Engine) RecordChoice(playerID string, value string) (Choice, error) {
	if playerID != e.players[0] && playerID != e.players[1] {
		return "", ErrNotAMember
	}

	choice, err := ParseChoice(value)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped() || e.round == nil || !e.round.running {
		return "", ErrRoundNotActive
	}

	e.round.choices[playerID] = choice
	return choice, nil
}

// Scores returns a copy of the per-session round scores.
func (e *Engine) Scores() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyScores(e.scores)
}

// History returns the archived rounds.
func (e *Engine) History() []RoundRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RoundRecord, len(e.history))
	copy(out, e.history)
	return out
}

// CurrentRound reports the round counter and whether a countdown is running.
func (e *Engine) CurrentRound() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roundNum, e.round != nil && e.round.running
}

func (e *Engine) run() {
	defer close(e.done)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("round engine fault", "room_id", e.roomID, "panic", r)
			e.stopOnce.Do(func() { close(e.stopCh) })
			e.bc.GameStopped("internal_error")
		}
	}()

	total := int(e.timing.Countdown / e.timing.Tick)
	first := true

	for {
		e.mu.Lock()
		if !first {
			e.round = newRoundState()
		}
		first = false
		round := e.roundNum
		start := e.round.startedAt
		e.mu.Unlock()

		// Countdown: tick deadlines are absolute offsets from the round
		// start, so scheduling jitter never accumulates into drift.
		for i := 0; i < total; i++ {
			if e.stopped() {
				return
			}
			e.bc.RoundTick(Tick{Round: round, Remaining: total - i, Total: total})
			if !e.sleepUntil(start.Add(time.Duration(i+1) * e.timing.Tick)) {
				return
			}
		}

		if e.stopped() {
			return
		}

		// Locking: exactly once per round.
		rev := e.finalize(round)
		e.bc.RoundReveal(rev)

		// Revealing: hold for client display, then schedule the next round.
		if !e.sleepFor(e.timing.Reveal) {
			return
		}
		if e.stopped() {
			return
		}

		e.mu.Lock()
		e.roundNum++
		next := e.roundNum
		e.mu.Unlock()
		e.bc.NewRound(next)
	}
}

// finalize locks the current round, forces absentees, resolves the outcome
// and archives the round. The reveal payload is snapshotted under the lock
// and broadcast after it is released.
func (e *Engine) finalize(round int) Reveal {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.round
	r.running = false

	for _, pid := range e.players {
		if _, ok := r.choices[pid]; !ok {
			r.choices[pid] = ChoiceAbsent
		}
	}

	p1, p2 := e.players[0], e.players[1]
	r.outcome = Resolve(r.choices[p1], r.choices[p2])

	var winner string
	switch r.outcome {
	case OutcomePlayer1:
		winner = p1
		e.scores[p1]++
	case OutcomePlayer2:
		winner = p2
		e.scores[p2]++
	case OutcomeDraw:
		// Round scoring rewards a shared point on a draw; cumulative room
		// scoring has its own rule applied at session end.
		e.scores[p1]++
		e.scores[p2]++
	}
	r.completed = true

	record := RoundRecord{
		Round:   round,
		Choices: copyChoices(r.choices),
		Winner:  winner,
		Outcome: r.outcome,
		Scores:  copyScores(e.scores),
	}
	e.history = append(e.history, record)

	return Reveal{
		Round:   round,
		Choices: record.Choices,
		Winner:  winner,
		Outcome: r.outcome,
		Scores:  record.Scores,
	}
}

func (e *Engine) stopped() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// sleepUntil waits for an absolute deadline, returning false if stopped.
func (e *Engine) sleepUntil(deadline time.Time) bool {
	return e.sleepFor(time.Until(deadline))
}

func (e *Engine) sleepFor(d time.Duration) bool {
	if d <= 0 {
		return !e.stopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-e.stopCh:
		return false
	}
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyChoices(in map[string]Choice) map[string]Choice {
	out := make(map[string]Choice, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
