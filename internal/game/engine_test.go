package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	p1 = "player-one"
	p2 = "player-two"
)

// recorder captures engine broadcasts for assertions.
type recorder struct {
	mu       sync.Mutex
	ticks    []Tick
	reveals  []Reveal
	rounds   []int
	stopped  []string
	revealCh chan Reveal
}

func newRecorder() *recorder {
	return &recorder{revealCh: make(chan Reveal, 16)}
}

func (r *recorder) RoundTick(t Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
}

func (r *recorder) RoundReveal(rev Reveal) {
	r.mu.Lock()
	r.reveals = append(r.reveals, rev)
	r.mu.Unlock()
	select {
	case r.revealCh <- rev:
	default:
	}
}

func (r *recorder) NewRound(round int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, round)
}

func (r *recorder) GameStopped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, reason)
}

func (r *recorder) snapshot() ([]Tick, []Reveal, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticks := append([]Tick(nil), r.ticks...)
	reveals := append([]Reveal(nil), r.reveals...)
	rounds := append([]int(nil), r.rounds...)
	return ticks, reveals, rounds
}

func fastTiming() Timing {
	return Timing{
		Countdown: 200 * time.Millisecond,
		Tick:      50 * time.Millisecond,
		Reveal:    50 * time.Millisecond,
	}
}

func waitReveal(t *testing.T, rec *recorder) Reveal {
	t.Helper()
	select {
	case rev := <-rec.revealCh:
		return rev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reveal")
		return Reveal{}
	}
}

func TestEngineImmediateStopEmitsNoReveal(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0001", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	e.Stop()

	// Stop returned, so the loop has exited; give any stray (buggy)
	// broadcast a chance to land before asserting.
	time.Sleep(50 * time.Millisecond)
	_, reveals, _ := rec.snapshot()
	assert.Empty(t, reveals)
}

func TestEngineStopIsIdempotent(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0002", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	e.Stop()
	e.Stop()
	e.Stop()
}

func TestEngineStopBeforeStart(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0003", [2]string{p1, p2}, rec, fastTiming())
	e.Stop()
	e.Start() // must not launch a loop on a stopped engine

	time.Sleep(60 * time.Millisecond)
	ticks, reveals, _ := rec.snapshot()
	assert.Empty(t, ticks)
	assert.Empty(t, reveals)
}

func TestEngineRoundResolvesChoices(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0004", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	defer e.Stop()

	_, err := e.RecordChoice(p1, "rock")
	require.NoError(t, err)
	_, err = e.RecordChoice(p2, "scissors")
	require.NoError(t, err)

	rev := waitReveal(t, rec)
	assert.Equal(t, 1, rev.Round)
	assert.Equal(t, OutcomePlayer1, rev.Outcome)
	assert.Equal(t, p1, rev.Winner)
	assert.Equal(t, ChoiceRock, rev.Choices[p1])
	assert.Equal(t, ChoiceScissors, rev.Choices[p2])
	assert.Equal(t, 1, rev.Scores[p1])
	assert.Equal(t, 0, rev.Scores[p2])
}

func TestEngineForcesAbsentees(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0005", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	defer e.Stop()

	_, err := e.RecordChoice(p2, "paper")
	require.NoError(t, err)

	rev := waitReveal(t, rec)
	assert.Equal(t, ChoiceAbsent, rev.Choices[p1])
	assert.Equal(t, OutcomePlayer2, rev.Outcome)
	assert.Equal(t, p2, rev.Winner)
}

func TestEngineDrawAwardsBothPlayers(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0006", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	defer e.Stop()

	// neither player answers: both absent is a draw
	rev := waitReveal(t, rec)
	assert.Equal(t, OutcomeDraw, rev.Outcome)
	assert.Empty(t, rev.Winner)
	assert.Equal(t, 1, rev.Scores[p1])
	assert.Equal(t, 1, rev.Scores[p2])
}

func TestEngineLastWriteWins(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0007", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	defer e.Stop()

	_, err := e.RecordChoice(p1, "rock")
	require.NoError(t, err)
	_, err = e.RecordChoice(p1, "rock")
	require.NoError(t, err)
	_, err = e.RecordChoice(p1, "paper")
	require.NoError(t, err)
	_, err = e.RecordChoice(p2, "rock")
	require.NoError(t, err)

	rev := waitReveal(t, rec)
	assert.Equal(t, ChoicePaper, rev.Choices[p1])
	assert.Equal(t, OutcomePlayer1, rev.Outcome)
}

func TestEngineRejectsOutsiders(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0008", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	defer e.Stop()

	_, err := e.RecordChoice("stranger", "rock")
	assert.ErrorIs(t, err, ErrNotAMember)

	_, err = e.RecordChoice(p1, "dynamite")
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestEngineRejectsChoiceAfterStop(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0009", [2]string{p1, p2}, rec, fastTiming())
	e.Start()
	e.Stop()

	_, err := e.RecordChoice(p1, "rock")
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

func TestEngineLateSubmissionDoesNotAlterOutcome(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0010", [2]string{p1, p2}, rec, fastTiming())
	e.Start()

	_, err := e.RecordChoice(p1, "rock")
	require.NoError(t, err)
	_, err = e.RecordChoice(p2, "scissors")
	require.NoError(t, err)

	rev := waitReveal(t, rec)
	e.Stop()

	_, err = e.RecordChoice(p2, "paper")
	assert.ErrorIs(t, err, ErrRoundNotActive)

	history := e.History()
	require.NotEmpty(t, history)
	assert.Equal(t, rev.Outcome, history[0].Outcome)
	assert.Equal(t, ChoiceScissors, history[0].Choices[p2])
}

func TestEngineRunsMultipleRounds(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0011", [2]string{p1, p2}, rec, fastTiming())
	e.Start()

	waitReveal(t, rec)
	waitReveal(t, rec)
	waitReveal(t, rec)
	e.Stop()

	_, reveals, rounds := rec.snapshot()
	require.GreaterOrEqual(t, len(reveals), 3)
	assert.Equal(t, 1, reveals[0].Round)
	assert.Equal(t, 2, reveals[1].Round)
	assert.Equal(t, 3, reveals[2].Round)
	require.NotEmpty(t, rounds)
	assert.Equal(t, 2, rounds[0])
}

func TestEngineTicksPrecedeReveal(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0012", [2]string{p1, p2}, rec, fastTiming())
	e.Start()

	waitReveal(t, rec)
	e.Stop()

	ticks, _, _ := rec.snapshot()
	var firstRound []Tick
	for _, tk := range ticks {
		if tk.Round == 1 {
			firstRound = append(firstRound, tk)
		}
	}
	require.Len(t, firstRound, 4)
	for i, tk := range firstRound {
		assert.Equal(t, 4-i, tk.Remaining)
		assert.Equal(t, 4, tk.Total)
	}
}

func TestEngineNoBroadcastAfterStop(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0013", [2]string{p1, p2}, rec, fastTiming())
	e.Start()

	waitReveal(t, rec)
	e.Stop()

	ticks, reveals, rounds := rec.snapshot()
	time.Sleep(100 * time.Millisecond)
	ticks2, reveals2, rounds2 := rec.snapshot()

	assert.Equal(t, len(ticks), len(ticks2))
	assert.Equal(t, len(reveals), len(reveals2))
	assert.Equal(t, len(rounds), len(rounds2))
}

func TestEngineScoresAccumulate(t *testing.T) {
	rec := newRecorder()
	e := NewEngine("ROOM0014", [2]string{p1, p2}, rec, fastTiming())
	e.Start()

	_, err := e.RecordChoice(p1, "rock")
	require.NoError(t, err)
	_, err = e.RecordChoice(p2, "scissors")
	require.NoError(t, err)
	waitReveal(t, rec)

	// second round: nobody answers, draw gives both a point
	waitReveal(t, rec)
	e.Stop()

	scores := e.Scores()
	assert.Equal(t, 2, scores[p1])
	assert.Equal(t, 1, scores[p2])
}
