// Package matfmt renders parsed XG matches as Jellyfish .mat text, the
// two-column notation read by GNU Backgammon and most analysis tools.
package matfmt

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmmcquay/gammon-mcp/internal/xgmatch"
)

// LeftColumnWidth is the padded width of the left column.
const LeftColumnWidth = 42

// rightPlayer is the activePlayer/winner value that renders in the right
// column. XG's player 1 is written on the right, player 2 on the left.
const rightPlayer = 1

// Write renders pm. A match without games renders only the header block.
func Write(pm *xgmatch.ParsedMatch) string {
	w := &writer{
		left:  pm.Match.Player2,
		right: pm.Match.Player1,
	}

	if pm.Match.MatchLength > 0 {
		w.line(fmt.Sprintf("%d point match", pm.Match.MatchLength))
	} else {
		w.line("Unlimited game")
	}
	w.line("")

	for i, g := range pm.Games {
		last := i == len(pm.Games)-1
		w.game(g, last && pm.Match.MatchLength > 0)
	}

	return strings.Join(w.lines, "\n")
}

// FileName returns the .mat name for an .xg file name.
func FileName(xgName string) string {
	base := filepath.Base(xgName)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".xg") {
		base = base[:len(base)-len(ext)]
	}
	return base + ".mat"
}

type writer struct {
	left, right string
	lines       []string
}

func (w *writer) line(s string) {
	w.lines = append(w.lines, s)
}

func (w *writer) game(g xgmatch.Game, wonMatch bool) {
	w.line(fmt.Sprintf(" Game %d", g.Header.GameNumber))
	w.line(padRight(fmt.Sprintf(" %s: %d", w.left, g.Header.Score2)) +
		fmt.Sprintf("%s: %d", w.right, g.Header.Score1))

	moveNum := 1
	pending := ""
	hasPending := false

	for _, a := range g.Actions {
		switch a := a.(type) {
		case xgmatch.CubeAction:
			if !a.Double {
				continue
			}
			double := fmt.Sprintf("Doubles => %d", a.NewCubeValue())
			response := ""
			if a.Take.Known() {
				response = a.Take.String()
			}

			if a.ActivePlayer != rightPlayer {
				w.line(padRight(moveNumber(moveNum)+double) + response)
				continue
			}

			if hasPending {
				w.line(padRight(pending) + double)
				pending, hasPending = "", false
				moveNum++
			} else {
				w.line(padRight(moveNumber(moveNum)) + double)
			}
			if response != "" {
				w.line(padRight(moveNumber(moveNum) + response))
			}

		case xgmatch.MoveAction:
			move := formatMove(a)
			if a.ActivePlayer != rightPlayer {
				pending, hasPending = moveNumber(moveNum)+move, true
				continue
			}

			leftPart := moveNumber(moveNum)
			if hasPending {
				leftPart = pending
			}
			w.line(padRight(leftPart) + move)
			pending, hasPending = "", false
			moveNum++
		}
	}

	if hasPending {
		w.line(padRight(pending))
	}

	if g.Footer != nil {
		result := "   Wins " + strconv.Itoa(g.Footer.PointsWon) + " point"
		if g.Footer.PointsWon != 1 {
			result += "s"
		}
		if wonMatch {
			result += " and the match"
		}
		if g.Footer.Winner != rightPlayer {
			w.line(padRight(result))
		} else {
			w.line(padRight("") + strings.TrimSpace(result))
		}
	}

	w.line("")
}

// formatMove renders "<dice>: <from>/<to> ...", higher die first.
func formatMove(m xgmatch.MoveAction) string {
	d1, d2 := m.Dice[0], m.Dice[1]
	if d1 < d2 {
		d1, d2 = d2, d1
	}

	parts := make([]string, 0, xgmatch.MaxSubMoves)
	for _, sm := range m.SubMoves() {
		parts = append(parts, point(sm.From)+"/"+point(sm.To))
	}
	return fmt.Sprintf("%d%d: %s", d1, d2, strings.Join(parts, " "))
}

// point converts a 0-based record point to .mat numbering, where 25 is the
// bar and 0 is off.
func point(p int) string {
	p++
	if p < 0 {
		p = 0
	}
	return strconv.Itoa(p)
}

// moveNumber renders the move number prefix, e.g. "  1) " or " 10) ".
func moveNumber(n int) string {
	return fmt.Sprintf(" %3s ", strconv.Itoa(n)+")")
}

func padRight(s string) string {
	if n := utf8.RuneCountInString(s); n < LeftColumnWidth {
		return s + strings.Repeat(" ", LeftColumnWidth-n)
	}
	return s
}
