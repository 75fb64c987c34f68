package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"playsync/internal/game"
	"playsync/internal/logger"
	"playsync/internal/metrics"
	"playsync/internal/repository"
	"playsync/internal/room"
	"playsync/internal/service"
)

const maxChatLength = 500

// Dispatcher routes decoded frames to their handlers. It owns no state of
// its own: rooms live in the registry, connection bindings in the hub.
type Dispatcher struct {
	registry *room.Registry
	hub      *Hub
	tokens   *service.Tokens
	timing   game.Timing
	archive  *repository.SessionArchive // nil when Postgres is not configured
}

func NewDispatcher(registry *room.Registry, hub *Hub, tokens *service.Tokens, timing game.Timing, archive *repository.SessionArchive) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		hub:      hub,
		tokens:   tokens,
		timing:   timing,
		archive:  archive,
	}
	hub.SetDropHandler(d.onConnectionDropped)
	hub.SetEvictHandler(d.onGraceExpired)
	return d
}

// HandleMessage decodes one inbound frame and dispatches it. A panic in a
// handler is downgraded to an internal_error response; the connection stays
// up.
func (d *Dispatcher) HandleMessage(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "conn_id", c.ID, "panic", r)
			d.sendError(c, CodeInternal, "internal error")
		}
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.sendError(c, CodeInternal, "malformed frame")
		return
	}

	switch env.Type {
	case MsgJoinRoom:
		d.handleJoin(c, env.Payload)
	case MsgReconnect:
		d.handleReconnect(c, env.Payload)
	case MsgLeaveRoom:
		d.handleLeave(c)
	case MsgStartGame:
		d.handleStartGame(c, env.Payload)
	case MsgSubmitChoice:
		d.handleSubmitChoice(c, env.Payload)
	case MsgStopGame:
		d.handleStopGame(c)
	case MsgChat:
		d.handleChat(c, env.Payload)
	default:
		d.sendError(c, CodeInternal, "unknown message type")
	}
}

func (d *Dispatcher) handleJoin(c *Client, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(c, CodeInternal, "malformed payload")
		return
	}

	if _, _, bound := d.hub.Binding(c); bound {
		d.sendError(c, CodeDuplicateConn, "connection already in a room")
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = "Player"
	}

	ctx := context.Background()
	slot, view, err := d.registry.JoinRoom(ctx, req.RoomID, req.DisplayName, req.Color)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			metrics.RoomJoins.WithLabelValues("not_found").Inc()
			d.sendError(c, CodeRoomNotFound, "room not found")
		case errors.Is(err, room.ErrRoomFull):
			metrics.RoomJoins.WithLabelValues("full").Inc()
			d.sendError(c, CodeRoomFull, "room is full")
		case errors.Is(err, room.ErrRoomExpired):
			metrics.RoomJoins.WithLabelValues("expired").Inc()
			d.sendError(c, CodeRoomExpired, "room has expired")
		default:
			metrics.RoomJoins.WithLabelValues("error").Inc()
			logger.Error("join failed", "room_id", req.RoomID, "error", err)
			d.sendError(c, CodeInternal, "internal error")
		}
		return
	}

	if err := d.hub.Bind(c, slot.PlayerID, view.RoomID); err != nil {
		// undo the seat: the connection raced another join on itself
		d.registry.LeaveRoom(ctx, view.RoomID, slot.PlayerID)
		d.sendError(c, CodeDuplicateConn, "connection already in a room")
		return
	}

	token, err := d.tokens.GeneratePlayerToken(slot.PlayerID, view.RoomID)
	if err != nil {
		logger.Error("token generation failed", "player_id", slot.PlayerID, "error", err)
	}

	metrics.RoomJoins.WithLabelValues("success").Inc()
	d.send(c, MsgJoinRoom, JoinRoomResponse{
		OK:          true,
		PlayerID:    slot.PlayerID,
		DisplayName: slot.DisplayName,
		Color:       slot.Color,
		Token:       token,
		Room:        view,
	})
	d.hub.Broadcast(view.RoomID, MsgPlayerJoined, PlayerJoinedEvent{
		PlayerID:    slot.PlayerID,
		DisplayName: slot.DisplayName,
		Color:       slot.Color,
		Room:        view,
	}, c)
}

func (d *Dispatcher) handleReconnect(c *Client, payload json.RawMessage) {
	var req ReconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(c, CodeInternal, "malformed payload")
		return
	}

	playerID, roomID, err := d.tokens.ParsePlayerToken(req.Token)
	if err != nil {
		d.sendError(c, CodeInvalidToken, "invalid or expired token")
		return
	}

	rm := d.registry.GetRoom(context.Background(), roomID)
	if rm == nil {
		d.sendError(c, CodeRoomNotFound, "room not found")
		return
	}
	if !rm.HasPlayer(playerID) {
		// grace expired, or the room was rehydrated without players
		d.sendError(c, CodeNotAMember, "seat no longer held")
		return
	}

	if err := d.hub.Rebind(c, playerID, rm.ID); err != nil {
		d.sendError(c, CodeDuplicateConn, "identity already connected")
		return
	}

	rm.MarkActive(playerID, true)
	rm.Touch()

	view := rm.View()
	d.send(c, MsgReconnect, ReconnectResponse{OK: true, PlayerID: playerID, Room: view})
	d.hub.Broadcast(rm.ID, MsgPlayerJoined, PlayerJoinedEvent{
		PlayerID: playerID,
		Room:     view,
	}, c)
	logger.Info("player reconnected", "room_id", rm.ID, "player_id", playerID)
}

func (d *Dispatcher) handleLeave(c *Client) {
	playerID, roomID, ok := d.hub.Unbind(c)
	if !ok {
		d.sendError(c, CodeNotAMember, "not in a room")
		return
	}

	ctx := context.Background()
	d.registry.LeaveRoom(ctx, roomID, playerID)
	d.send(c, MsgLeaveRoom, LeaveRoomResponse{OK: true})

	d.afterDeparture(ctx, roomID, playerID)
}

func (d *Dispatcher) handleStartGame(c *Client, payload json.RawMessage) {
	var req StartGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(c, CodeInternal, "malformed payload")
		return
	}

	_, roomID, ok := d.hub.Binding(c)
	if !ok {
		d.sendError(c, CodeNotAMember, "not in a room")
		return
	}

	kind, err := game.ParseKind(req.GameKind)
	if err != nil {
		d.sendError(c, CodeInvalidKind, "unknown game kind")
		return
	}

	rm := d.registry.GetRoom(context.Background(), roomID)
	if rm == nil {
		d.sendError(c, CodeRoomNotFound, "room not found")
		return
	}

	_, err = rm.StartGame(kind, req.ResetScores, func(players [2]string) *game.Engine {
		return game.NewEngine(rm.ID, players, &roomBroadcaster{hub: d.hub, roomID: rm.ID}, d.timing)
	})
	if err != nil {
		if errors.Is(err, room.ErrNeedTwoPlayers) {
			d.sendError(c, CodeNeedTwoPlayers, "two players required")
		} else if errors.Is(err, room.ErrNoActiveGame) {
			d.sendError(c, CodeRoundNotActive, "game ended before it could start")
		} else {
			logger.Error("start game failed", "room_id", rm.ID, "error", err)
			d.sendError(c, CodeInternal, "internal error")
		}
		return
	}

	rm.Touch()
	d.send(c, MsgStartGame, StartGameResponse{OK: true})
	d.hub.Broadcast(rm.ID, MsgGameStarted, GameStartedEvent{GameKind: kind, Room: rm.View()}, nil)
	logger.Info("game started", "room_id", rm.ID, "kind", kind)
}

func (d *Dispatcher) handleSubmitChoice(c *Client, payload json.RawMessage) {
	var req SubmitChoiceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(c, CodeInternal, "malformed payload")
		return
	}

	playerID, roomID, ok := d.hub.Binding(c)
	if !ok {
		d.sendError(c, CodeNotAMember, "not in a room")
		return
	}

	rm := d.registry.GetRoom(context.Background(), roomID)
	if rm == nil {
		d.sendError(c, CodeRoomNotFound, "room not found")
		return
	}
	eng := rm.CurrentEngine()
	if eng == nil {
		d.send(c, MsgSubmitChoice, SubmitChoiceResponse{Accepted: false, Message: "no active round"})
		return
	}

	if _, err := eng.RecordChoice(playerID, req.Value); err != nil {
		switch {
		case errors.Is(err, game.ErrInvalidChoice):
			d.sendError(c, CodeInvalidChoice, "invalid choice")
		case errors.Is(err, game.ErrNotAMember):
			d.sendError(c, CodeNotAMember, "not a participant")
		case errors.Is(err, game.ErrRoundNotActive):
			d.send(c, MsgSubmitChoice, SubmitChoiceResponse{Accepted: false, Message: "round already locked"})
		default:
			d.sendError(c, CodeInternal, "internal error")
		}
		return
	}

	rm.Touch()
	d.send(c, MsgSubmitChoice, SubmitChoiceResponse{Accepted: true, Message: "choice recorded"})
	d.hub.Broadcast(roomID, MsgChoiceRecorded, ChoiceRecordedEvent{PlayerID: playerID}, c)
}

func (d *Dispatcher) handleStopGame(c *Client) {
	_, roomID, ok := d.hub.Binding(c)
	if !ok {
		d.sendError(c, CodeNotAMember, "not in a room")
		return
	}

	rm := d.registry.GetRoom(context.Background(), roomID)
	if rm == nil {
		d.sendError(c, CodeRoomNotFound, "room not found")
		return
	}

	if !d.endGame(rm, "stopped_by_player") {
		d.sendError(c, CodeRoundNotActive, "no active game")
		return
	}
	rm.Touch()
}

func (d *Dispatcher) handleChat(c *Client, payload json.RawMessage) {
	var req ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(c, CodeInternal, "malformed payload")
		return
	}

	playerID, roomID, ok := d.hub.Binding(c)
	if !ok {
		d.sendError(c, CodeNotAMember, "not in a room")
		return
	}
	if req.Message == "" {
		return
	}
	if len(req.Message) > maxChatLength {
		// cut on a rune boundary so a multi-byte character is never split
		cut := maxChatLength
		for cut > 0 && !utf8.RuneStart(req.Message[cut]) {
			cut--
		}
		req.Message = req.Message[:cut]
	}

	rm := d.registry.GetRoom(context.Background(), roomID)
	if rm == nil {
		d.sendError(c, CodeRoomNotFound, "room not found")
		return
	}
	rm.Touch()

	var displayName string
	for _, p := range rm.View().Players {
		if p.PlayerID == playerID {
			displayName = p.DisplayName
			break
		}
	}

	d.hub.Broadcast(roomID, MsgChatMessage, ChatMessageEvent{
		PlayerID:    playerID,
		DisplayName: displayName,
		Message:     req.Message,
		Timestamp:   float64(time.Now().UnixMilli()) / 1000,
	}, nil)
}

// endGame stops the active session, applies cumulative scoring and archives
// the outcome. Returns false when no session was active.
func (d *Dispatcher) endGame(rm *room.Room, reason string) bool {
	eng := rm.DetachEngine()

	result := &game.Result{Reason: reason}
	if eng != nil {
		eng.Stop()
		scores := eng.Scores()
		var leader string
		top, unique := -1, false
		for pid, s := range scores {
			switch {
			case s > top:
				top, leader, unique = s, pid, true
			case s == top:
				unique = false
			}
		}
		if unique {
			result.Winner = &leader
		}
		result.Details = map[string]any{"round_scores": scores, "rounds_played": len(eng.History())}
	}

	if err := rm.EndGame(result); err != nil {
		return false
	}

	d.archiveResult(rm, result)
	d.hub.Broadcast(rm.ID, MsgGameStopped, GameStoppedEvent{RoomID: rm.ID, Reason: reason}, nil)
	logger.Info("game stopped", "room_id", rm.ID, "reason", reason)
	return true
}

// archiveResult writes one per-player row for a finished session. Best
// effort: archive failures are logged and never surface to players.
func (d *Dispatcher) archiveResult(rm *room.Room, result *game.Result) {
	if d.archive == nil || result == nil {
		return
	}

	view := rm.View()
	scores := rm.CumulativeScores()
	players := view.Players
	for i, p := range players {
		outcome := "draw"
		if result.Winner != nil {
			if *result.Winner == p.PlayerID {
				outcome = "win"
			} else {
				outcome = "lose"
			}
		}
		opponent := ""
		if len(players) == 2 {
			opponent = players[1-i].PlayerID
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := d.archive.Create(ctx, &repository.SessionRecord{
			RoomID:     rm.ID,
			PlayerID:   p.PlayerID,
			OpponentID: opponent,
			GameKind:   game.KindRPS,
			Result:     outcome,
			Score:      scores[p.PlayerID],
			Details:    result.Details,
		})
		cancel()
		if err != nil {
			logger.Error("session archive failed", "room_id", rm.ID, "player_id", p.PlayerID, "error", err)
		}
	}
}

// onConnectionDropped fires the instant a bound socket closes; the player
// keeps their seat through the grace window but shows as inactive.
func (d *Dispatcher) onConnectionDropped(roomID, playerID string) {
	rm := d.registry.GetRoom(context.Background(), roomID)
	if rm == nil {
		return
	}
	rm.MarkActive(playerID, false)
}

// onGraceExpired evicts a player whose disconnect outlived the grace window.
func (d *Dispatcher) onGraceExpired(roomID, playerID string) {
	ctx := context.Background()
	if !d.registry.LeaveRoom(ctx, roomID, playerID) {
		return
	}
	d.afterDeparture(ctx, roomID, playerID)
}

// afterDeparture notifies remaining players and shuts down a game that can no
// longer be played.
func (d *Dispatcher) afterDeparture(ctx context.Context, roomID, playerID string) {
	rm := d.registry.GetRoom(ctx, roomID)
	if rm == nil {
		return
	}

	if rm.PlayerCount() < 2 && rm.CurrentEngine() != nil {
		d.endGame(rm, "player_left")
	}
	d.hub.Broadcast(roomID, MsgPlayerLeft, PlayerLeftEvent{PlayerID: playerID, Room: rm.View()}, nil)
}

func (d *Dispatcher) send(c *Client, msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		logger.Error("response marshal failed", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

func (d *Dispatcher) sendError(c *Client, code, message string) {
	d.send(c, MsgError, ErrorPayload{Code: code, Message: message})
}

// roomBroadcaster adapts hub fan-out to the engine's broadcast contract.
// Every method is non-blocking: slow clients drop frames rather than stall
// the round loop.
type roomBroadcaster struct {
	hub    *Hub
	roomID string
}

func (b *roomBroadcaster) RoundTick(tick game.Tick) {
	b.hub.Broadcast(b.roomID, MsgRoundTick, tick, nil)
}

func (b *roomBroadcaster) RoundReveal(rev game.Reveal) {
	metrics.RoundsResolved.WithLabelValues(string(rev.Outcome)).Inc()
	b.hub.Broadcast(b.roomID, MsgRoundReveal, rev, nil)
}

func (b *roomBroadcaster) NewRound(round int) {
	b.hub.Broadcast(b.roomID, MsgNewRound, NewRoundEvent{Round: round}, nil)
}

func (b *roomBroadcaster) GameStopped(reason string) {
	b.hub.Broadcast(b.roomID, MsgGameStopped, GameStoppedEvent{RoomID: b.roomID, Reason: reason}, nil)
}
