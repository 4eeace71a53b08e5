package game

import (
	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// Ledger is the append-only per-question scoring record of a match. One row
// is appended for every toss-up started. Rows never shrink except by an
// explicit host deletion, which removes the entry without recomputing
// historical scores.
type Ledger struct {
	rows    []*domain.Row
	nextNum int
}

func newLedger() *Ledger {
	return &Ledger{nextNum: 1}
}

// StartRow appends a new row seeded with each team's current running score
// and zero deltas.
func (l *Ledger) StartRow(teams []*domain.Team) {
	row := &domain.Row{
		Num:   l.nextNum,
		Teams: make(map[string]*domain.RowLine, len(teams)),
	}
	l.nextNum++
	for _, t := range teams {
		row.Teams[t.ID] = &domain.RowLine{Score: t.Score}
	}
	l.rows = append(l.rows, row)
}

func (l *Ledger) current() *domain.Row {
	if len(l.rows) == 0 {
		return nil
	}
	return l.rows[len(l.rows)-1]
}

func (l *Ledger) line(teamID string) *domain.RowLine {
	row := l.current()
	if row == nil {
		return nil
	}
	return row.Teams[teamID]
}

// RecordTossup adds a toss-up delta to the current row and refreshes the
// team's running score. No-op when no row has been started yet.
func (l *Ledger) RecordTossup(teamID string, points, score int) {
	if line := l.line(teamID); line != nil {
		line.TU += points
		line.Score = score
	}
}

// RecordBenefit adds an interrupt-benefit delta to the current row.
func (l *Ledger) RecordBenefit(teamID string, points, score int) {
	if line := l.line(teamID); line != nil {
		line.P += points
		line.Score = score
	}
}

// RecordBonus adds a bonus delta to the current row.
func (l *Ledger) RecordBonus(teamID string, points, score int) {
	if line := l.line(teamID); line != nil {
		line.B += points
		line.Score = score
	}
}

// DeleteRow removes the row with the given number.
func (l *Ledger) DeleteRow(num int) error {
	for i, row := range l.rows {
		if row.Num == num {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrRowNotFound
}

// Rows returns the rows in append order.
func (l *Ledger) Rows() []*domain.Row {
	return l.rows
}
