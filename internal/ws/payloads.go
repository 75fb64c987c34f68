package ws

import (
	"encoding/json"

	"playsync/internal/game"
	"playsync/internal/room"
)

// client → server
const (
	MsgJoinRoom     = "join_room"
	MsgLeaveRoom    = "leave_room"
	MsgReconnect    = "reconnect"
	MsgStartGame    = "start_game"
	MsgSubmitChoice = "submit_choice"
	MsgStopGame     = "stop_game"
	MsgChat         = "chat"
)

// server → client
const (
	MsgError          = "error"
	MsgPlayerJoined   = "player_joined"
	MsgPlayerLeft     = "player_left"
	MsgGameStarted    = "game_started"
	MsgGameStopped    = "game_stopped"
	MsgChoiceRecorded = "choice_recorded"
	MsgRoundTick      = "round_tick"
	MsgRoundReveal    = "round_reveal"
	MsgNewRound       = "new_round"
	MsgChatMessage    = "chat_message"
)

// Error codes carried in structured failure responses. Internal faults are
// always downgraded to CodeInternal at the boundary; detail stays in logs.
const (
	CodeRoomNotFound   = "room_not_found"
	CodeRoomFull       = "room_full"
	CodeRoomExpired    = "room_expired"
	CodeNotAMember     = "not_a_member"
	CodeInvalidChoice  = "invalid_choice"
	CodeRoundNotActive = "round_not_active"
	CodeDuplicateConn  = "duplicate_connection"
	CodeNeedTwoPlayers = "need_two_players"
	CodeInvalidKind    = "invalid_game_kind"
	CodeInvalidToken   = "invalid_token"
	CodeInternal       = "internal_error"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type JoinRoomRequest struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name,omitempty"`
	Color       string `json:"color,omitempty"`
}

type JoinRoomResponse struct {
	OK          bool      `json:"success"`
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Color       string    `json:"color"`
	Token       string    `json:"token"`
	Room        room.View `json:"room"`
}

type ReconnectRequest struct {
	Token string `json:"token"`
}

type ReconnectResponse struct {
	OK       bool      `json:"success"`
	PlayerID string    `json:"player_id"`
	Room     room.View `json:"room"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomResponse struct {
	OK bool `json:"success"`
}

type StartGameRequest struct {
	RoomID      string `json:"room_id"`
	GameKind    string `json:"game_kind"`
	ResetScores bool   `json:"reset_scores,omitempty"`
}

type StartGameResponse struct {
	OK bool `json:"success"`
}

type SubmitChoiceRequest struct {
	RoomID string `json:"room_id"`
	Value  string `json:"value"`
}

type SubmitChoiceResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

type StopGameRequest struct {
	RoomID string `json:"room_id"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type PlayerJoinedEvent struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Color       string    `json:"color"`
	Room        room.View `json:"room"`
}

type PlayerLeftEvent struct {
	PlayerID string    `json:"player_id"`
	Room     room.View `json:"room"`
}

type GameStartedEvent struct {
	GameKind game.Kind `json:"game_kind"`
	Room     room.View `json:"room"`
}

type GameStoppedEvent struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason,omitempty"`
}

type ChoiceRecordedEvent struct {
	PlayerID string `json:"player_id"`
}

type NewRoundEvent struct {
	Round int `json:"round"`
}

type ChatMessageEvent struct {
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Message     string  `json:"message"`
	Timestamp   float64 `json:"timestamp"`
}
