package tictactoe

import "github.com/rocketscienceinc/gameroom-backend/internal/entity"

const WinnerDraw = "draw"

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Outcome - terminal result of a board: a winning mark with its line, or a draw.
type Outcome struct {
	Winner string `json:"winner"`
	Line   []int  `json:"line,omitempty"`
}

func (that *Outcome) IsDraw() bool {
	return that.Winner == WinnerDraw
}

// Evaluate - scans the board for a finished game. Returns nil while the game
// continues. Every line is checked even though move-by-move application can
// complete at most one.
func Evaluate(board [entity.BoardSize]string) *Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return &Outcome{
				Winner: a,
				Line:   []int{combo[0], combo[1], combo[2]},
			}
		}
	}

	for _, cell := range board {
		if cell == entity.EmptyCell {
			return nil
		}
	}

	return &Outcome{Winner: WinnerDraw}
}
