package roomstore

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/tictactoe"
)

var roomIDFormat = regexp.MustCompile(`^[a-zA-Z0-9]{6}$`)

// playingRoom - creates a room with both seats taken, X to move.
func playingRoom(t *testing.T, store *Store) *entity.Room {
	t.Helper()

	room, err := store.CreateRoom("conn-x", "Alice")
	require.NoError(t, err)

	room, err = store.JoinRoom(room.ID, "conn-o", "Bob")
	require.NoError(t, err)

	return room
}

func TestStore_CreateRoom(t *testing.T) {
	t.Run("Creates a waiting room with a 6-character alphanumeric id", func(t *testing.T) {
		// Given: an empty store
		store := New(10)

		// When: creating a room
		room, err := store.CreateRoom("conn-1", "Alice")

		// Then: the room waits with the creator seated as X
		require.NoError(t, err)
		assert.Regexp(t, roomIDFormat, room.ID)
		assert.Equal(t, entity.StatusWaiting, room.Status)
		assert.Equal(t, entity.MarkX, room.Turn)
		require.NotNil(t, room.Member("conn-1"))
		assert.Equal(t, entity.MarkX, room.Member("conn-1").Mark)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("Generates unique ids among live rooms", func(t *testing.T) {
		// Given: an empty store
		store := New(100)

		// When: creating many rooms
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			room, err := store.CreateRoom("conn-1", "Alice")
			require.NoError(t, err)
			seen[room.ID] = true
		}

		// Then: every id is distinct
		assert.Len(t, seen, 50)
	})

	t.Run("Fails with ErrServerFull at capacity", func(t *testing.T) {
		// Given: a store at its room limit
		store := New(1)
		_, err := store.CreateRoom("conn-1", "Alice")
		require.NoError(t, err)

		// When: creating one more room
		_, err = store.CreateRoom("conn-2", "Bob")

		// Then: it is rejected and the table is unchanged
		assert.ErrorIs(t, err, apperror.ErrServerFull)
		assert.Equal(t, 1, store.Len())
	})
}

func TestStore_JoinRoom(t *testing.T) {
	t.Run("Seats the joiner as O and starts the game", func(t *testing.T) {
		// Given: a waiting room
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: a second connection joins
		room, err := store.JoinRoom(created.ID, "conn-o", "Bob")

		// Then: the game is playing and the joiner holds O
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPlaying, room.Status)
		require.NotNil(t, room.Member("conn-o"))
		assert.Equal(t, entity.MarkO, room.Member("conn-o").Mark)
		assert.Equal(t, entity.MarkX, room.Member("conn-x").Mark)
		assert.Equal(t, entity.MarkX, room.Turn)
	})

	t.Run("Fails with ErrRoomNotFound for an unknown id", func(t *testing.T) {
		store := New(10)

		_, err := store.JoinRoom("zzzzzz", "conn-o", "Bob")

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Fails with ErrRoomFull when both seats are taken", func(t *testing.T) {
		// Given: a room that is already playing
		store := New(10)
		room := playingRoom(t, store)

		// When: a third connection tries to join
		_, err := store.JoinRoom(room.ID, "conn-3", "Carol")

		// Then: it is rejected
		assert.ErrorIs(t, err, apperror.ErrRoomFull)
	})

	t.Run("Rejects the creator joining their own room", func(t *testing.T) {
		// Given: a waiting room
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: the creator joins the same room
		_, err = store.JoinRoom(created.ID, "conn-x", "Alice")

		// Then: the join is rejected and the mark is never reassigned
		assert.ErrorIs(t, err, apperror.ErrAlreadyInRoom)

		room, err := store.Snapshot(created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusWaiting, room.Status)
		assert.Equal(t, entity.MarkX, room.Member("conn-x").Mark)
	})
}

func TestStore_ApplyMove(t *testing.T) {
	t.Run("Applies a legal move and flips the turn", func(t *testing.T) {
		// Given: a playing room with X to move
		store := New(10)
		room := playingRoom(t, store)

		// When: X plays cell 4
		updated, outcome, err := store.ApplyMove(room.ID, "conn-x", 4)

		// Then: the mark is written and the turn passes to O
		require.NoError(t, err)
		assert.Nil(t, outcome)
		assert.Equal(t, entity.MarkX, updated.Board[4])
		assert.Equal(t, entity.MarkO, updated.Turn)
		assert.Equal(t, entity.StatusPlaying, updated.Status)
	})

	t.Run("Fails with ErrRoomNotFound for an unknown room", func(t *testing.T) {
		store := New(10)

		_, _, err := store.ApplyMove("zzzzzz", "conn-x", 0)

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Fails with ErrGameNotPlaying in a waiting room", func(t *testing.T) {
		// Given: a room with a single player
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: the creator moves before an opponent joins
		_, _, err = store.ApplyMove(created.ID, "conn-x", 0)

		// Then: the move is rejected and the board is untouched
		assert.ErrorIs(t, err, apperror.ErrGameNotPlaying)

		room, err := store.Snapshot(created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, room.Board[0])
	})

	t.Run("Fails with ErrNotAMember for a connection that never joined", func(t *testing.T) {
		// Given: a room with a single player
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: a second connection moves before joining
		_, _, err = store.ApplyMove(created.ID, "conn-o", 0)

		// Then: the move is rejected and the board is untouched
		assert.ErrorIs(t, err, apperror.ErrNotAMember)

		room, err := store.Snapshot(created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, room.Board[0])
	})

	t.Run("Fails with ErrNotAMember for an outside connection", func(t *testing.T) {
		// Given: a playing room
		store := New(10)
		room := playingRoom(t, store)

		// When: a connection outside the room moves
		_, _, err := store.ApplyMove(room.ID, "conn-stranger", 0)

		// Then: the move is rejected and the board is untouched
		assert.ErrorIs(t, err, apperror.ErrNotAMember)

		snapshot, err := store.Snapshot(room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, snapshot.Board[0])
	})

	t.Run("Fails with ErrNotYourTurn for a stale move", func(t *testing.T) {
		// Given: a playing room with X to move
		store := New(10)
		room := playingRoom(t, store)

		// When: O moves out of turn
		_, _, err := store.ApplyMove(room.ID, "conn-o", 0)

		// Then: the move is rejected; board and turn are unchanged
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

		snapshot, err := store.Snapshot(room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, snapshot.Board[0])
		assert.Equal(t, entity.MarkX, snapshot.Turn)
	})

	t.Run("A filled cell is never overwritten", func(t *testing.T) {
		// Given: a playing room where X took cell 0
		store := New(10)
		room := playingRoom(t, store)
		_, _, err := store.ApplyMove(room.ID, "conn-x", 0)
		require.NoError(t, err)

		// When: O targets the same cell, repeatedly
		// Then: every attempt fails with ErrCellOccupied
		for i := 0; i < 3; i++ {
			_, _, err = store.ApplyMove(room.ID, "conn-o", 0)
			assert.ErrorIs(t, err, apperror.ErrCellOccupied)
		}

		snapshot, err := store.Snapshot(room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.MarkX, snapshot.Board[0])
		assert.Equal(t, entity.MarkO, snapshot.Turn)
	})

	t.Run("Rejects an out-of-range cell index", func(t *testing.T) {
		store := New(10)
		room := playingRoom(t, store)

		_, _, err := store.ApplyMove(room.ID, "conn-x", 9)

		assert.ErrorIs(t, err, ErrInvalidCell)
	})

	t.Run("Completing the top row finishes the game with the turn frozen", func(t *testing.T) {
		// Given: a playing room
		store := New(10)
		room := playingRoom(t, store)

		// When: playing X:0 O:3 X:1 O:4 X:2
		moves := []struct {
			conn string
			cell int
		}{
			{"conn-x", 0}, {"conn-o", 3}, {"conn-x", 1}, {"conn-o", 4},
		}
		for _, move := range moves {
			_, outcome, err := store.ApplyMove(room.ID, move.conn, move.cell)
			require.NoError(t, err)
			require.Nil(t, outcome)
		}

		updated, outcome, err := store.ApplyMove(room.ID, "conn-x", 2)

		// Then: X wins on line 0-1-2, the room is finished, the turn stays X
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, entity.MarkX, outcome.Winner)
		assert.Equal(t, []int{0, 1, 2}, outcome.Line)
		assert.Equal(t, entity.StatusFinished, updated.Status)
		assert.Equal(t, entity.MarkX, updated.Turn)

		// And: no further moves are legal
		_, _, err = store.ApplyMove(room.ID, "conn-o", 5)
		assert.ErrorIs(t, err, apperror.ErrGameNotPlaying)
	})

	t.Run("Filling the board with no line ends in a draw", func(t *testing.T) {
		// Given: a playing room
		store := New(10)
		room := playingRoom(t, store)

		// When: playing X:0 O:1 X:2 O:3 X:4 O:6 X:5 O:8 X:7
		moves := []struct {
			conn string
			cell int
		}{
			{"conn-x", 0}, {"conn-o", 1}, {"conn-x", 2}, {"conn-o", 3},
			{"conn-x", 4}, {"conn-o", 6}, {"conn-x", 5}, {"conn-o", 8},
		}
		for _, move := range moves {
			_, outcome, err := store.ApplyMove(room.ID, move.conn, move.cell)
			require.NoError(t, err)
			require.Nil(t, outcome)
		}

		updated, outcome, err := store.ApplyMove(room.ID, "conn-x", 7)

		// Then: the result is a draw and the room is finished
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, tictactoe.WinnerDraw, outcome.Winner)
		assert.Equal(t, entity.StatusFinished, updated.Status)
	})

	t.Run("Two racing moves on the same cell admit exactly one", func(t *testing.T) {
		// Given: a playing room with X to move
		store := New(10)
		room := playingRoom(t, store)

		// When: the same player submits the same move twice concurrently
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, errs[i] = store.ApplyMove(room.ID, "conn-x", 0)
			}(i)
		}
		wg.Wait()

		// Then: exactly one attempt succeeds and the cell holds a single X
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)

		snapshot, err := store.Snapshot(room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.MarkX, snapshot.Board[0])
		assert.Equal(t, entity.MarkO, snapshot.Turn)
	})
}

func TestStore_Snapshot(t *testing.T) {
	t.Run("Repeated snapshots of an unmodified room are identical", func(t *testing.T) {
		// Given: a playing room
		store := New(10)
		room := playingRoom(t, store)

		// When: snapshotting twice with no mutation in between
		first, err := store.Snapshot(room.ID)
		require.NoError(t, err)
		second, err := store.Snapshot(room.ID)
		require.NoError(t, err)

		// Then: the snapshots are equal
		assert.Equal(t, first, second)
	})

	t.Run("Mutating a snapshot does not touch the store", func(t *testing.T) {
		// Given: a snapshot of a live room
		store := New(10)
		room := playingRoom(t, store)
		snapshot, err := store.Snapshot(room.ID)
		require.NoError(t, err)

		// When: scribbling over the snapshot
		snapshot.Board[0] = entity.MarkO
		snapshot.Status = entity.StatusFinished
		delete(snapshot.Players, "conn-x")

		// Then: a fresh snapshot shows the original state
		fresh, err := store.Snapshot(room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, fresh.Board[0])
		assert.Equal(t, entity.StatusPlaying, fresh.Status)
		assert.Len(t, fresh.Players, 2)
	})

	t.Run("Fails with ErrRoomNotFound for an unknown id", func(t *testing.T) {
		store := New(10)

		_, err := store.Snapshot("zzzzzz")

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestStore_RemovePlayer(t *testing.T) {
	t.Run("Removing one of two players keeps the room alive", func(t *testing.T) {
		// Given: a playing room
		store := New(10)
		room := playingRoom(t, store)

		// When: O leaves
		remaining, deleted, err := store.RemovePlayer(room.ID, "conn-o")

		// Then: the room survives with only X seated
		require.NoError(t, err)
		assert.False(t, deleted)
		require.NotNil(t, remaining)
		assert.Len(t, remaining.Players, 1)
		assert.Nil(t, remaining.Member("conn-o"))
	})

	t.Run("Removing the last player deletes the room", func(t *testing.T) {
		// Given: a room with a single player
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: the creator leaves
		remaining, deleted, err := store.RemovePlayer(created.ID, "conn-x")

		// Then: deletion is signalled and the room is gone
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Nil(t, remaining)
		assert.Equal(t, 0, store.Len())

		_, err = store.Snapshot(created.ID)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Fails with ErrRoomNotFound for an unknown room", func(t *testing.T) {
		store := New(10)

		_, _, err := store.RemovePlayer("zzzzzz", "conn-x")

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestStore_RemoveFromAll(t *testing.T) {
	t.Run("Removes a connection from every room it belongs to", func(t *testing.T) {
		// Given: one connection seated in two rooms, alone in the second
		store := New(10)
		shared := playingRoom(t, store)
		solo, err := store.CreateRoom("conn-o", "Bob")
		require.NoError(t, err)

		// When: the connection disconnects
		departures := store.RemoveFromAll("conn-o")

		// Then: the shared room survives without it and the solo room is deleted
		require.Len(t, departures, 2)

		byID := make(map[string]Departure, len(departures))
		for _, departure := range departures {
			byID[departure.RoomID] = departure
		}

		require.Contains(t, byID, shared.ID)
		assert.False(t, byID[shared.ID].Deleted)
		assert.Nil(t, byID[shared.ID].Room.Member("conn-o"))

		require.Contains(t, byID, solo.ID)
		assert.True(t, byID[solo.ID].Deleted)

		_, err = store.Snapshot(solo.ID)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Leaves unrelated rooms untouched", func(t *testing.T) {
		// Given: a room the connection never joined
		store := New(10)
		other, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: some other connection disconnects
		departures := store.RemoveFromAll("conn-stranger")

		// Then: nothing is reported and the room is intact
		assert.Empty(t, departures)

		snapshot, err := store.Snapshot(other.ID)
		require.NoError(t, err)
		assert.Len(t, snapshot.Players, 1)
	})
}

func TestStore_Sweep(t *testing.T) {
	t.Run("Evicts rooms idle past the cutoff", func(t *testing.T) {
		// Given: a room with no activity since creation
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: sweeping with a cutoff after the room's last activity
		evicted := store.Sweep(time.Now().Add(time.Second))

		// Then: the room is gone
		assert.Equal(t, 1, evicted)
		assert.Equal(t, 0, store.Len())

		_, err = store.Snapshot(created.ID)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Retains rooms active since the cutoff", func(t *testing.T) {
		// Given: a freshly created room
		store := New(10)
		created, err := store.CreateRoom("conn-x", "Alice")
		require.NoError(t, err)

		// When: sweeping with a cutoff in the past
		evicted := store.Sweep(time.Now().Add(-time.Minute))

		// Then: the room survives
		assert.Equal(t, 0, evicted)

		_, err = store.Snapshot(created.ID)
		require.NoError(t, err)
	})
}

func TestStore_Stats(t *testing.T) {
	t.Run("Breaks room counts down by status", func(t *testing.T) {
		// Given: one waiting and one playing room
		store := New(10)
		_, err := store.CreateRoom("conn-1", "Alice")
		require.NoError(t, err)
		playingRoom(t, store)

		// When: collecting stats
		stats := store.Stats()

		// Then: the counts line up
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 2, stats.Active)
		assert.Equal(t, 1, stats.Waiting)
		assert.Equal(t, 1, stats.Playing)
		assert.Equal(t, 0, stats.Finished)
	})
}
