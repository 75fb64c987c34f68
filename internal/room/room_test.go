package room

import (
	"testing"
	"time"

	"playsync/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPlayerRoom(t *testing.T) (*Room, string, string) {
	t.Helper()
	rm := New("TESTROOM", 2, time.Hour)
	p1, err := rm.AddPlayer("pid-1", "ann", "red")
	require.NoError(t, err)
	p2, err := rm.AddPlayer("pid-2", "bob", "blue")
	require.NoError(t, err)
	return rm, p1.PlayerID, p2.PlayerID
}

func TestAddPlayerDuplicate(t *testing.T) {
	rm := New("TESTROOM", 2, time.Hour)
	_, err := rm.AddPlayer("pid-1", "ann", "red")
	require.NoError(t, err)
	_, err = rm.AddPlayer("pid-1", "ann again", "red")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestPlayerOrderTracksMembership(t *testing.T) {
	rm, id1, id2 := twoPlayerRoom(t)

	pair, err := rm.PlayerPair()
	require.NoError(t, err)
	assert.Equal(t, [2]string{id1, id2}, pair)

	removed, empty := rm.RemovePlayer(id1)
	assert.True(t, removed)
	assert.False(t, empty)

	_, err = rm.PlayerPair()
	assert.ErrorIs(t, err, ErrNeedTwoPlayers)

	removed, empty = rm.RemovePlayer(id2)
	assert.True(t, removed)
	assert.True(t, empty)
}

func TestAddPlayerRejectedAfterRoomEmptied(t *testing.T) {
	rm := New("TESTROOM", 2, time.Hour)
	_, err := rm.AddPlayer("pid-1", "ann", "red")
	require.NoError(t, err)

	removed, empty := rm.RemovePlayer("pid-1")
	require.True(t, removed)
	require.True(t, empty)

	// a join holding a stale pointer to the emptied room must not slip in
	// between the last leave and the registry dropping the room
	_, err = rm.AddPlayer("pid-2", "bob", "blue")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStartGameNeedsTwoPlayersForEngine(t *testing.T) {
	rm := New("TESTROOM", 2, time.Hour)
	_, err := rm.AddPlayer("pid-1", "ann", "red")
	require.NoError(t, err)

	_, err = rm.StartGame(game.KindRPS, false, func(p [2]string) *game.Engine {
		t.Fatal("engine must not be built without two players")
		return nil
	})
	assert.ErrorIs(t, err, ErrNeedTwoPlayers)
}

func TestStartGameSeedsScores(t *testing.T) {
	rm, id1, id2 := twoPlayerRoom(t)

	// session without engine, then a decisive result
	session, err := rm.StartGame(game.KindRPS, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, session.Scores[id1])

	winner := id1
	require.NoError(t, rm.EndGame(&game.Result{Winner: &winner, Reason: "game_complete"}))
	assert.Equal(t, map[string]int{id1: 1, id2: 0}, rm.CumulativeScores())

	// rematch without reset inherits cumulative scores
	session, err = rm.StartGame(game.KindRPS, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Scores[id1])
	assert.Equal(t, 0, session.Scores[id2])

	// reset starts from zero again
	require.NoError(t, rm.EndGame(nil))
	session, err = rm.StartGame(game.KindRPS, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, session.Scores[id1])
}

func TestEndGameDrawGrantsEveryoneAPoint(t *testing.T) {
	rm, id1, id2 := twoPlayerRoom(t)

	_, err := rm.StartGame(game.KindRPS, true, nil)
	require.NoError(t, err)
	require.NoError(t, rm.EndGame(&game.Result{Reason: "draw"}))

	scores := rm.CumulativeScores()
	assert.Equal(t, 1, scores[id1])
	assert.Equal(t, 1, scores[id2])
}

func TestEndGameWithoutActiveSession(t *testing.T) {
	rm, _, _ := twoPlayerRoom(t)
	assert.ErrorIs(t, rm.EndGame(nil), ErrNoActiveGame)
}

func TestStartGameStopsPreviousEngine(t *testing.T) {
	rm, _, _ := twoPlayerRoom(t)

	timing := game.Timing{Countdown: 200 * time.Millisecond, Tick: 50 * time.Millisecond, Reveal: 50 * time.Millisecond}
	bc := noopBroadcaster{}

	_, err := rm.StartGame(game.KindRPS, true, func(p [2]string) *game.Engine {
		return game.NewEngine(rm.ID, p, bc, timing)
	})
	require.NoError(t, err)
	first := rm.CurrentEngine()
	require.NotNil(t, first)

	_, err = rm.StartGame(game.KindRPS, true, func(p [2]string) *game.Engine {
		return game.NewEngine(rm.ID, p, bc, timing)
	})
	require.NoError(t, err)
	second := rm.CurrentEngine()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	// the first engine was stopped synchronously: choices are dead on it
	_, err = first.RecordChoice("pid-1", "rock")
	assert.ErrorIs(t, err, game.ErrRoundNotActive)

	second.Stop()
}

func TestStartGameAbortsWhenSessionEndsMidBuild(t *testing.T) {
	rm, _, _ := twoPlayerRoom(t)
	timing := game.Timing{Countdown: 200 * time.Millisecond, Tick: 50 * time.Millisecond, Reveal: 50 * time.Millisecond}

	var eng *game.Engine
	_, err := rm.StartGame(game.KindRPS, true, func(p [2]string) *game.Engine {
		// the session is torn down between its creation and the engine
		// being attached
		require.NoError(t, rm.EndGame(&game.Result{Reason: "stopped_by_player"}))
		eng = game.NewEngine(rm.ID, p, noopBroadcaster{}, timing)
		return eng
	})
	assert.ErrorIs(t, err, ErrNoActiveGame)
	require.NotNil(t, eng)

	// the orphaned engine must be dead, not ticking with no owner
	assert.Nil(t, rm.CurrentEngine())
	_, running := eng.CurrentRound()
	assert.False(t, running)
	_, err = eng.RecordChoice("pid-1", "rock")
	assert.ErrorIs(t, err, game.ErrRoundNotActive)
}

func TestViewReflectsJoinOrder(t *testing.T) {
	rm, id1, id2 := twoPlayerRoom(t)

	v := rm.View()
	assert.Equal(t, "TESTROOM", v.RoomID)
	assert.Equal(t, 2, v.PlayerCount)
	require.Len(t, v.Players, 2)
	assert.Equal(t, id1, v.Players[0].PlayerID)
	assert.Equal(t, id2, v.Players[1].PlayerID)
	assert.Equal(t, "ann", v.Players[0].DisplayName)
}

func TestTouchDefersExpiry(t *testing.T) {
	rm := New("TESTROOM", 2, 30*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	rm.Touch()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, rm.IsExpired())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, rm.IsExpired())
}

type noopBroadcaster struct{}

func (noopBroadcaster) RoundTick(game.Tick)     {}
func (noopBroadcaster) RoundReveal(game.Reveal) {}
func (noopBroadcaster) NewRound(int)            {}
func (noopBroadcaster) GameStopped(string)      {}
