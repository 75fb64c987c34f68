package repository

import (
	"context"
	"encoding/json"
	"time"

	"playsync/internal/game"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRecord is one finished game session as archived per player.
type SessionRecord struct {
	ID         int64
	RoomID     string
	PlayerID   string
	OpponentID string
	GameKind   game.Kind
	Result     string // win | lose | draw
	Score      int
	Details    map[string]any
	CreatedAt  time.Time
}

// SessionArchive persists finished sessions to Postgres. Schema:
//
//	CREATE TABLE game_sessions (
//	    id          BIGSERIAL PRIMARY KEY,
//	    room_id     TEXT NOT NULL,
//	    player_id   TEXT NOT NULL,
//	    opponent_id TEXT NOT NULL,
//	    game_kind   TEXT NOT NULL,
//	    result      TEXT NOT NULL,
//	    score       INT NOT NULL DEFAULT 0,
//	    details     JSONB NOT NULL DEFAULT '{}',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type SessionArchive struct {
	db *pgxpool.Pool
}

func NewSessionArchive(db *pgxpool.Pool) *SessionArchive {
	return &SessionArchive{db: db}
}

// Create stores one per-player row.
func (a *SessionArchive) Create(ctx context.Context, rec *SessionRecord) error {
	detailsJSON, err := json.Marshal(rec.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return a.db.QueryRow(ctx,
		`INSERT INTO game_sessions
			(room_id, player_id, opponent_id, game_kind, result, score, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		rec.RoomID,
		rec.PlayerID,
		rec.OpponentID,
		rec.GameKind,
		rec.Result,
		rec.Score,
		detailsJSON,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// GetByPlayer returns a player's most recent sessions.
func (a *SessionArchive) GetByPlayer(ctx context.Context, playerID string, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.Query(ctx,
		`SELECT id, room_id, player_id, opponent_id, game_kind, result, score, details, created_at
		 FROM game_sessions
		 WHERE player_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*SessionRecord
	for rows.Next() {
		var (
			rec         SessionRecord
			detailsJSON []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.RoomID, &rec.PlayerID, &rec.OpponentID,
			&rec.GameKind, &rec.Result, &rec.Score, &detailsJSON, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &rec.Details)
		}
		result = append(result, &rec)
	}

	return result, rows.Err()
}
