package roomstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/tictactoe"
)

const roomIDLength = 6

var ErrInvalidCell = errors.New("invalid cell index")

// Store - the authoritative in-memory room table. Every room lives behind its
// own lock, so actions against one room never serialize against another; the
// store-level lock only guards the id index.
type Store struct {
	maxRooms int

	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

type roomEntry struct {
	mu      sync.Mutex
	room    *entity.Room
	deleted bool
}

// Departure - result of removing one connection from one room.
type Departure struct {
	RoomID  string
	Room    *entity.Room // nil when the room was deleted
	Deleted bool
}

// Stats - room counts broken down by status.
type Stats struct {
	Total    int
	Active   int
	Waiting  int
	Playing  int
	Finished int
}

func New(maxRooms int) *Store {
	return &Store{
		maxRooms: maxRooms,
		rooms:    make(map[string]*roomEntry),
	}
}

// CreateRoom - inserts a fresh waiting room with the creator seated as X.
// Fails when the live-room table is at capacity.
func (that *Store) CreateRoom(creatorID, name string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.rooms) >= that.maxRooms {
		return nil, apperror.ErrServerFull
	}

	id := newRoomID()
	for _, exists := that.rooms[id]; exists; _, exists = that.rooms[id] {
		id = newRoomID()
	}

	room := entity.NewRoom(id, creatorID, name, time.Now())
	that.rooms[id] = &roomEntry{room: room}

	return room.Clone(), nil
}

// JoinRoom - seats the joiner as O and starts the game.
func (that *Store) JoinRoom(id, joinerID, name string) (*entity.Room, error) {
	var snapshot *entity.Room

	err := that.withRoom(id, func(room *entity.Room) error {
		if room.Member(joinerID) != nil {
			return apperror.ErrAlreadyInRoom
		}

		if room.IsFull() {
			return apperror.ErrRoomFull
		}

		room.Players[joinerID] = &entity.Player{
			ID:   joinerID,
			Name: entity.SanitizeName(name),
			Mark: entity.MarkO,
		}
		room.Status = entity.StatusPlaying
		room.LastActivity = time.Now()

		snapshot = room.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// ApplyMove - applies one move for the given connection and evaluates the
// board. A terminal outcome freezes the turn and finishes the room; otherwise
// the turn flips. Rejected moves leave the room untouched.
func (that *Store) ApplyMove(id, connID string, index int) (*entity.Room, *tictactoe.Outcome, error) {
	var (
		snapshot *entity.Room
		outcome  *tictactoe.Outcome
	)

	err := that.withRoom(id, func(room *entity.Room) error {
		if index < 0 || index >= entity.BoardSize {
			return fmt.Errorf("%w: %d", ErrInvalidCell, index)
		}

		player := room.Member(connID)
		if player == nil {
			return apperror.ErrNotAMember
		}

		if !room.IsPlaying() {
			return apperror.ErrGameNotPlaying
		}

		if room.Board[index] != entity.EmptyCell {
			return apperror.ErrCellOccupied
		}

		if player.Mark != room.Turn {
			return apperror.ErrNotYourTurn
		}

		room.Board[index] = player.Mark
		room.LastActivity = time.Now()

		if outcome = tictactoe.Evaluate(room.Board); outcome != nil {
			room.Status = entity.StatusFinished
		} else {
			room.Turn = entity.ToggleMark(room.Turn)
		}

		snapshot = room.Clone()

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return snapshot, outcome, nil
}

// RemovePlayer - unseats the connection; the room is deleted once its player
// set becomes empty, signalled so callers skip broadcasting to a dead room.
func (that *Store) RemovePlayer(id, connID string) (*entity.Room, bool, error) {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, false, apperror.ErrRoomNotFound
	}

	room, deleted, _ := that.removeMember(id, entry, connID)
	if room == nil && !deleted {
		// The entry died between the index lookup and the room lock.
		return nil, false, apperror.ErrRoomNotFound
	}

	return room, deleted, nil
}

// RemoveFromAll - tears a disconnected connection out of every room it belongs
// to. Rooms the connection never joined are untouched.
func (that *Store) RemoveFromAll(connID string) []Departure {
	var departures []Departure

	for id, entry := range that.entries() {
		room, deleted, member := that.removeMember(id, entry, connID)
		if !member {
			continue
		}

		departures = append(departures, Departure{RoomID: id, Room: room, Deleted: deleted})
	}

	return departures
}

// Snapshot - read-only copy of a room for state resyncs.
func (that *Store) Snapshot(id string) (*entity.Room, error) {
	var snapshot *entity.Room

	err := that.withRoom(id, func(room *entity.Room) error {
		snapshot = room.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Sweep - deletes every room whose last activity precedes the cutoff and
// reports how many were evicted. Each room is locked only for its own check.
func (that *Store) Sweep(before time.Time) int {
	evicted := 0

	for id, entry := range that.entries() {
		entry.mu.Lock()
		stale := !entry.deleted && entry.room.LastActivity.Before(before)
		if stale {
			entry.deleted = true
		}
		entry.mu.Unlock()

		if stale {
			that.unlink(id, entry)
			evicted++
		}
	}

	return evicted
}

// Len - number of live rooms.
func (that *Store) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}

// Stats - per-status room counts for the observability endpoints.
func (that *Store) Stats() Stats {
	var stats Stats

	for _, entry := range that.entries() {
		entry.mu.Lock()
		if entry.deleted {
			entry.mu.Unlock()
			continue
		}

		stats.Total++
		if !entry.room.IsEmpty() {
			stats.Active++
		}

		switch entry.room.Status {
		case entity.StatusWaiting:
			stats.Waiting++
		case entity.StatusPlaying:
			stats.Playing++
		case entity.StatusFinished:
			stats.Finished++
		}
		entry.mu.Unlock()
	}

	return stats
}

// withRoom - runs fn with exclusive access to one live room.
func (that *Store) withRoom(id string, fn func(room *entity.Room) error) error {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return apperror.ErrRoomNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return apperror.ErrRoomNotFound
	}

	return fn(entry.room)
}

// removeMember - drops connID from the entry, marking the entry deleted when
// it empties. The index unlink happens after the room lock is released, so
// lock order stays store-then-room everywhere.
func (that *Store) removeMember(id string, entry *roomEntry, connID string) (*entity.Room, bool, bool) {
	entry.mu.Lock()

	if entry.deleted {
		entry.mu.Unlock()
		return nil, false, false
	}

	_, member := entry.room.Players[connID]
	delete(entry.room.Players, connID)

	if entry.room.IsEmpty() {
		entry.deleted = true
		entry.mu.Unlock()

		that.unlink(id, entry)

		return nil, true, member
	}

	snapshot := entry.room.Clone()
	entry.mu.Unlock()

	return snapshot, false, member
}

// entries - snapshot of the id index so iteration never holds the store lock.
func (that *Store) entries() map[string]*roomEntry {
	that.mu.RLock()
	defer that.mu.RUnlock()

	snapshot := make(map[string]*roomEntry, len(that.rooms))
	for id, entry := range that.rooms {
		snapshot[id] = entry
	}

	return snapshot
}

func (that *Store) unlink(id string, entry *roomEntry) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if current, ok := that.rooms[id]; ok && current == entry {
		delete(that.rooms, id)
	}
}

// newRoomID - 6-character alphanumeric room code.
func newRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:roomIDLength]
}
