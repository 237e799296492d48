package entity

import "time"

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	MarkX = "X"
	MarkO = "O"

	EmptyCell = ""

	BoardSize = 9

	MaxPlayers = 2

	maxNameLength = 20
	defaultName   = "Player"
)

type Room struct {
	ID           string             `json:"id"`
	Players      map[string]*Player `json:"players"`
	Board        [BoardSize]string  `json:"board"`
	Turn         string             `json:"turn"`
	Status       string             `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity time.Time          `json:"-"`
}

// NewRoom - creates a waiting room with the creator seated as X.
func NewRoom(id, creatorID, creatorName string, now time.Time) *Room {
	room := &Room{
		ID:           id,
		Players:      make(map[string]*Player, MaxPlayers),
		Turn:         MarkX,
		Status:       StatusWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}

	room.Players[creatorID] = &Player{
		ID:   creatorID,
		Name: SanitizeName(creatorName),
		Mark: MarkX,
	}

	return room
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Room) IsFull() bool {
	return len(that.Players) >= MaxPlayers
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

// Member - returns the seated player for a connection, or nil.
func (that *Room) Member(connID string) *Player {
	return that.Players[connID]
}

// MemberIDs - connection ids of everyone currently seated; broadcast targets.
func (that *Room) MemberIDs() []string {
	ids := make([]string, 0, len(that.Players))
	for id := range that.Players {
		ids = append(ids, id)
	}

	return ids
}

// Clone - deep copy so callers never share mutable state with the store.
func (that *Room) Clone() *Room {
	clone := *that

	clone.Players = make(map[string]*Player, len(that.Players))
	for id, player := range that.Players {
		playerCopy := *player
		clone.Players[id] = &playerCopy
	}

	return &clone
}

// ToggleMark - the opposing mark.
func ToggleMark(mark string) string {
	if mark == MarkX {
		return MarkO
	}

	return MarkX
}

// SanitizeName - bounds a display name and falls back to a default.
func SanitizeName(name string) string {
	if name == "" {
		return defaultName
	}

	runes := []rune(name)
	if len(runes) > maxNameLength {
		return string(runes[:maxNameLength])
	}

	return name
}
