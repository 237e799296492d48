package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/roomstore"
	"github.com/rocketscienceinc/gameroom-backend/internal/tictactoe"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidRoomID    = errors.New("invalid room id")
	ErrInvalidMoveIndex = errors.New("invalid move index")
)

const internalErrorMsg = "internal server error"

var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{6}$`)

type roomStore interface {
	CreateRoom(creatorID, name string) (*entity.Room, error)
	JoinRoom(id, joinerID, name string) (*entity.Room, error)
	ApplyMove(id, connID string, index int) (*entity.Room, *tictactoe.Outcome, error)
	RemovePlayer(id, connID string) (*entity.Room, bool, error)
	RemoveFromAll(connID string) []roomstore.Departure
	Snapshot(id string) (*entity.Room, error)
}

type limiter interface {
	Admit(connID string, now time.Time) bool
	Forget(connID string)
}

// Handler - the per-connection request dispatcher. It validates payloads,
// consults the rate limiter, delegates to the room store, and describes the
// resulting fan-out as Directed messages so it needs no live transport.
type Handler struct {
	logger *slog.Logger
	rooms  roomStore
	limits limiter

	handlers map[string]func(connID string, payload json.RawMessage) ([]Directed, error)
}

func NewHandler(logger *slog.Logger, rooms roomStore, limits limiter) *Handler {
	handler := &Handler{
		logger: logger.With("component", "protocol"),
		rooms:  rooms,
		limits: limits,

		handlers: make(map[string]func(string, json.RawMessage) ([]Directed, error)),
	}

	handler.handlers[ActionCreateRoom] = handler.handleCreateRoom
	handler.handlers[ActionJoinRoom] = handler.handleJoinRoom
	handler.handlers[ActionGetRoomState] = handler.handleGetRoomState
	handler.handlers[ActionMove] = handler.handleMove
	handler.handlers[ActionLeaveRoom] = handler.handleLeaveRoom

	return handler
}

// HandleMessage - processes one raw inbound frame. Failures are reported only
// to the originating connection; panics are converted to a generic error so a
// bad request can never take the connection down.
func (that *Handler) HandleMessage(connID string, raw []byte) (out []Directed) {
	log := that.logger.With("method", "HandleMessage", "connID", connID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from panic while handling message", "panic", r)
			out = []Directed{errorTo(connID, internalErrorMsg)}
		}
	}()

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return []Directed{errorTo(connID, ErrMalformedPayload.Error())}
	}

	handle, ok := that.handlers[msg.Action]
	if !ok {
		return []Directed{errorTo(connID, ErrUnknownAction.Error())}
	}

	out, err := handle(connID, msg.Payload)
	if err != nil {
		return []Directed{errorTo(connID, that.userMessage(log, msg.Action, err))}
	}

	return out
}

// Disconnect - synchronous teardown of everything the connection owned: its
// rate-limiter entry and every room membership. Remaining members of each
// affected room get a fresh snapshot.
func (that *Handler) Disconnect(connID string) []Directed {
	that.limits.Forget(connID)

	var out []Directed
	for _, departure := range that.rooms.RemoveFromAll(connID) {
		if departure.Deleted {
			continue
		}

		out = append(out, broadcastRoomState(departure.Room))
	}

	return out
}

func (that *Handler) handleCreateRoom(connID string, payload json.RawMessage) ([]Directed, error) {
	var req CreateRoomPayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}

	if err := that.admit(connID); err != nil {
		return nil, err
	}

	room, err := that.rooms.CreateRoom(connID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.logger.Info("room created", "roomID", room.ID, "connID", connID)

	return []Directed{
		{To: []string{connID}, Message: newMessage(EventRoomCreated, RoomCreatedPayload{RoomID: room.ID, Mark: entity.MarkX})},
		broadcastRoomState(room),
	}, nil
}

func (that *Handler) handleJoinRoom(connID string, payload json.RawMessage) ([]Directed, error) {
	var req JoinRoomPayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}

	if !roomIDPattern.MatchString(req.RoomID) {
		return nil, ErrInvalidRoomID
	}

	if err := that.admit(connID); err != nil {
		return nil, err
	}

	room, err := that.rooms.JoinRoom(req.RoomID, connID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	that.logger.Info("player joined room", "roomID", room.ID, "connID", connID)

	members := room.MemberIDs()

	return []Directed{
		{To: []string{connID}, Message: newMessage(EventRoomCreated, RoomCreatedPayload{RoomID: room.ID, Mark: entity.MarkO})},
		{To: members, Message: newMessage(EventPlayerJoined, PlayerJoinedPayload{Players: room.Players})},
		{To: members, Message: newMessage(EventStartGame, StartGamePayload{Room: room})},
		broadcastRoomState(room),
	}, nil
}

func (that *Handler) handleGetRoomState(connID string, payload json.RawMessage) ([]Directed, error) {
	var req RoomIDPayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}

	if !roomIDPattern.MatchString(req.RoomID) {
		return nil, ErrInvalidRoomID
	}

	room, err := that.rooms.Snapshot(req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot room: %w", err)
	}

	out := []Directed{
		{To: []string{connID}, Message: newMessage(EventRoomState, room)},
	}

	// Resync also re-sends the caller's assigned mark, so a client that lost
	// the original room_created can recover it.
	if member := room.Member(connID); member != nil {
		out = append(out, Directed{
			To:      []string{connID},
			Message: newMessage(EventRoomCreated, RoomCreatedPayload{RoomID: room.ID, Mark: member.Mark}),
		})
	}

	return out, nil
}

func (that *Handler) handleMove(connID string, payload json.RawMessage) ([]Directed, error) {
	var req MovePayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}

	if !roomIDPattern.MatchString(req.RoomID) {
		return nil, ErrInvalidRoomID
	}

	if req.Index == nil || *req.Index < 0 || *req.Index >= entity.BoardSize {
		return nil, ErrInvalidMoveIndex
	}

	if err := that.admit(connID); err != nil {
		return nil, err
	}

	room, outcome, err := that.rooms.ApplyMove(req.RoomID, connID, *req.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	if outcome != nil {
		that.logger.Info("game finished", "roomID", room.ID, "winner", outcome.Winner)

		return []Directed{
			{To: room.MemberIDs(), Message: newMessage(EventGameOver, GameOverPayload{Result: outcome, Board: room.Board})},
		}, nil
	}

	return []Directed{
		{To: room.MemberIDs(), Message: newMessage(EventMoveMade, MoveMadePayload{Board: room.Board, Turn: room.Turn})},
	}, nil
}

func (that *Handler) handleLeaveRoom(connID string, payload json.RawMessage) ([]Directed, error) {
	var req RoomIDPayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}

	if !roomIDPattern.MatchString(req.RoomID) {
		return nil, ErrInvalidRoomID
	}

	room, deleted, err := that.rooms.RemovePlayer(req.RoomID, connID)
	if err != nil {
		return nil, fmt.Errorf("failed to leave room: %w", err)
	}

	if deleted {
		that.logger.Info("room deleted", "roomID", req.RoomID)
		return nil, nil
	}

	return []Directed{broadcastRoomState(room)}, nil
}

func (that *Handler) admit(connID string) error {
	if !that.limits.Admit(connID, time.Now()) {
		return apperror.ErrRateLimited
	}

	return nil
}

// userMessage - maps an operation error to the string surfaced to the client.
// Anything outside the known taxonomy is logged and replaced with a generic
// failure.
func (that *Handler) userMessage(log *slog.Logger, action string, err error) string {
	known := []error{
		apperror.ErrRateLimited,
		apperror.ErrServerFull,
		apperror.ErrRoomNotFound,
		apperror.ErrRoomFull,
		apperror.ErrAlreadyInRoom,
		apperror.ErrGameNotPlaying,
		apperror.ErrNotAMember,
		apperror.ErrCellOccupied,
		apperror.ErrNotYourTurn,
		roomstore.ErrInvalidCell,
		ErrMalformedPayload,
		ErrInvalidRoomID,
		ErrInvalidMoveIndex,
	}

	for _, candidate := range known {
		if errors.Is(err, candidate) {
			return candidate.Error()
		}
	}

	log.Error("unexpected error handling action", "action", action, "error", err)

	return internalErrorMsg
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return nil
}

func broadcastRoomState(room *entity.Room) Directed {
	return Directed{
		To:      room.MemberIDs(),
		Message: newMessage(EventRoomState, room),
	}
}

func errorTo(connID, reason string) Directed {
	return Directed{
		To:      []string{connID},
		Message: newMessage(EventError, reason),
	}
}
