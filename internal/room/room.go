package room

import (
	"sync"
	"time"

	"playsync/internal/game"
)

// PlayerSlot is one player's seat in a room. The player id is generated by
// the server on join and never reused across different players.
type PlayerSlot struct {
	PlayerID    string
	DisplayName string
	Color       string
	Ready       bool
	Active      bool
	JoinedAt    time.Time
}

// GameSession is one play-through of a game kind within a room. At most one
// session is active per room; finished sessions move to the room history.
type GameSession struct {
	Kind      game.Kind
	StartedAt time.Time
	Scores    map[string]int
	Engine    *game.Engine
	Result    *game.Result
}

// Room is the in-memory aggregate: player slots, scores, the active session
// and join order. All mutation goes through its mutex; the registry is the
// only component that creates or deletes rooms.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu                sync.Mutex
	startMu           sync.Mutex // serializes session replacement
	closed            bool
	lastActivity      time.Time
	maxPlayers        int
	inactivityTimeout time.Duration
	players           map[string]*PlayerSlot
	playerOrder       []string
	cumulativeScores  map[string]int
	currentGame       *GameSession
	history           []*GameSession
}

const historyLimit = 20

func New(id string, maxPlayers int, inactivityTimeout time.Duration) *Room {
	now := time.Now()
	return &Room{
		ID:                id,
		CreatedAt:         now,
		lastActivity:      now,
		maxPlayers:        maxPlayers,
		inactivityTimeout: inactivityTimeout,
		players:           make(map[string]*PlayerSlot),
		cumulativeScores:  make(map[string]int),
	}
}

// AddPlayer admits a player if the room is neither full, expired nor closed.
// Fullness and expiry are evaluated at the instant of the attempt, under the
// room lock, so two joins racing for the last slot cannot both win. A closed
// room rejects joins even through a stale pointer obtained before the
// registry dropped it.
func (r *Room) AddPlayer(playerID, displayName, color string) (*PlayerSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}
	if r.expiredLocked() {
		return nil, ErrRoomExpired
	}
	if _, ok := r.players[playerID]; ok {
		return nil, ErrAlreadyJoined
	}
	if len(r.players) >= r.maxPlayers {
		return nil, ErrRoomFull
	}

	slot := &PlayerSlot{
		PlayerID:    playerID,
		DisplayName: displayName,
		Color:       color,
		Active:      true,
		JoinedAt:    time.Now(),
	}
	r.players[playerID] = slot
	r.playerOrder = append(r.playerOrder, playerID)
	r.lastActivity = time.Now()
	return slot, nil
}

// RemovePlayer drops a player and reports whether the room is now empty.
// Emptiness is the deletion decision, so the room closes in the same critical
// section: a join racing against the last leave cannot be admitted into a
// room the registry is about to delete.
func (r *Room) RemovePlayer(playerID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return false, len(r.players) == 0
	}
	delete(r.players, playerID)
	for i, pid := range r.playerOrder {
		if pid == playerID {
			r.playerOrder = append(r.playerOrder[:i], r.playerOrder[i+1:]...)
			break
		}
	}
	r.lastActivity = time.Now()
	if len(r.players) == 0 {
		r.closed = true
	}
	return true, len(r.players) == 0
}

// markClosed seals the room against further joins. Used when the registry
// deletes a room for a reason other than emptiness.
func (r *Room) markClosed() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// HasPlayer reports membership.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[playerID]
	return ok
}

// PlayerCount returns the current number of seated players.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// MarkActive flags a player's liveness (used across disconnect grace).
func (r *Room) MarkActive(playerID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[playerID]; ok {
		p.Active = active
	}
}

// IsExpired reports whether the inactivity timeout has elapsed.
func (r *Room) IsExpired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expiredLocked()
}

func (r *Room) expiredLocked() bool {
	return time.Since(r.lastActivity) > r.inactivityTimeout
}

// Touch refreshes the last-activity timestamp, the room's only keepalive.
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// PlayerPair returns the first two players in join order. Join order is the
// deterministic player-1/player-2 assignment for round-based games.
func (r *Room) PlayerPair() ([2]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.playerOrder) < 2 {
		return [2]string{}, ErrNeedTwoPlayers
	}
	return [2]string{r.playerOrder[0], r.playerOrder[1]}, nil
}

// StartGame replaces the active session. Any running engine is stopped
// synchronously before the new session begins, so two timers can never
// mutate the same room concurrently. Session scores start at zero when
// resetScores is set, otherwise they inherit the room's cumulative scores
// (the rematch case). buildEngine may be nil for kinds with no timer.
func (r *Room) StartGame(kind game.Kind, resetScores bool, buildEngine func(players [2]string) *game.Engine) (*GameSession, error) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	old := r.currentGame
	r.mu.Unlock()
	if old != nil && old.Engine != nil {
		old.Engine.Stop()
	}

	r.mu.Lock()
	session := &GameSession{
		Kind:      kind,
		StartedAt: time.Now(),
		Scores:    make(map[string]int),
	}
	for pid := range r.players {
		if resetScores {
			session.Scores[pid] = 0
		} else {
			session.Scores[pid] = r.cumulativeScores[pid]
		}
	}
	for _, p := range r.players {
		p.Ready = false
	}

	var pair [2]string
	if buildEngine != nil {
		if len(r.playerOrder) < 2 {
			r.mu.Unlock()
			return nil, ErrNeedTwoPlayers
		}
		pair = [2]string{r.playerOrder[0], r.playerOrder[1]}
	}

	if old != nil {
		r.archiveLocked(old)
	}
	r.currentGame = session
	r.lastActivity = time.Now()
	r.mu.Unlock()

	if buildEngine != nil {
		eng := buildEngine(pair)
		r.mu.Lock()
		// the session may have been ended while the engine was being
		// built; starting the engine anyway would leave it running with
		// no owner to stop it
		if r.currentGame != session {
			r.mu.Unlock()
			eng.Stop()
			return nil, ErrNoActiveGame
		}
		session.Engine = eng
		r.mu.Unlock()
		eng.Start()
	}
	return session, nil
}

// EndGame closes the active session and applies the result to cumulative
// scores: a named winner gains one point, a draw grants all participants one
// point. The session moves into the room history.
func (r *Room) EndGame(result *game.Result) error {
	eng := r.DetachEngine()
	if eng != nil {
		eng.Stop()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentGame == nil {
		return ErrNoActiveGame
	}

	session := r.currentGame
	session.Result = result
	if result != nil {
		if result.Winner != nil {
			if _, ok := session.Scores[*result.Winner]; ok {
				session.Scores[*result.Winner]++
			}
		} else {
			for pid := range session.Scores {
				session.Scores[pid]++
			}
		}
		r.cumulativeScores = make(map[string]int, len(session.Scores))
		for pid, s := range session.Scores {
			r.cumulativeScores[pid] = s
		}
	}

	r.archiveLocked(session)
	r.currentGame = nil
	r.lastActivity = time.Now()
	return nil
}

// DetachEngine removes and returns the active engine, leaving the session in
// place. The caller owns stopping it.
func (r *Room) DetachEngine() *game.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentGame == nil || r.currentGame.Engine == nil {
		return nil
	}
	eng := r.currentGame.Engine
	r.currentGame.Engine = nil
	return eng
}

// CurrentEngine returns the active session's engine, if any.
func (r *Room) CurrentEngine() *game.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentGame == nil {
		return nil
	}
	return r.currentGame.Engine
}

// CumulativeScores returns a copy of the room's cross-session scores.
func (r *Room) CumulativeScores() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.cumulativeScores))
	for k, v := range r.cumulativeScores {
		out[k] = v
	}
	return out
}

func (r *Room) archiveLocked(s *GameSession) {
	s.Engine = nil
	r.history = append(r.history, s)
	if len(r.history) > historyLimit {
		r.history = r.history[len(r.history)-historyLimit:]
	}
}
