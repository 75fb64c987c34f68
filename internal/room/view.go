package room

import (
	"time"

	"playsync/internal/game"
)

// PlayerView is the wire shape of a seated player.
type PlayerView struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
	Score       int    `json:"score"`
	Ready       bool   `json:"is_ready"`
	Active      bool   `json:"is_active"`
}

// GameView is the wire shape of a game session.
type GameView struct {
	Kind      game.Kind      `json:"game_kind"`
	StartedAt time.Time      `json:"started_at"`
	Scores    map[string]int `json:"player_scores"`
	Round     int            `json:"round,omitempty"`
	Running   bool           `json:"round_running,omitempty"`
	Winner    *string        `json:"winner,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// View is the serialized room state sent in responses and broadcasts.
type View struct {
	RoomID      string         `json:"room_id"`
	CreatedAt   time.Time      `json:"created_at"`
	PlayerCount int            `json:"player_count"`
	MaxPlayers  int            `json:"max_players"`
	Players     []PlayerView   `json:"players"`
	Scores      map[string]int `json:"cumulative_scores"`
	CurrentGame *GameView      `json:"current_game,omitempty"`
	History     []GameView     `json:"game_history,omitempty"`
}

// View snapshots the room under its lock. Callers broadcast the snapshot
// after the lock is released.
func (r *Room) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		RoomID:      r.ID,
		CreatedAt:   r.CreatedAt,
		PlayerCount: len(r.players),
		MaxPlayers:  r.maxPlayers,
		Players:     make([]PlayerView, 0, len(r.players)),
		Scores:      make(map[string]int, len(r.cumulativeScores)),
	}
	for pid, s := range r.cumulativeScores {
		v.Scores[pid] = s
	}

	for _, pid := range r.playerOrder {
		p, ok := r.players[pid]
		if !ok {
			continue
		}
		v.Players = append(v.Players, PlayerView{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Color:       p.Color,
			Score:       r.cumulativeScores[pid],
			Ready:       p.Ready,
			Active:      p.Active,
		})
	}

	if r.currentGame != nil {
		v.CurrentGame = gameView(r.currentGame)
	}
	for _, s := range r.history {
		v.History = append(v.History, *gameView(s))
	}
	return v
}

func gameView(s *GameSession) *GameView {
	gv := &GameView{
		Kind:      s.Kind,
		StartedAt: s.StartedAt,
		Scores:    make(map[string]int, len(s.Scores)),
	}
	for pid, sc := range s.Scores {
		gv.Scores[pid] = sc
	}
	if s.Engine != nil {
		gv.Round, gv.Running = s.Engine.CurrentRound()
		// live round scores supersede the snapshot taken at session start
		for pid, sc := range s.Engine.Scores() {
			gv.Scores[pid] = sc
		}
	}
	if s.Result != nil {
		gv.Winner = s.Result.Winner
		gv.Reason = s.Result.Reason
	}
	return gv
}
