package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VoteChoice es la evaluación de un votante sobre el resultado de un poll.
type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteUnclear VoteChoice = "unclear" // se registra pero no cuenta para el consenso
)

// ParseVoteChoice acepta yes/no/unclear.
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch c := VoteChoice(strings.ToLower(strings.TrimSpace(s))); c {
	case VoteYes, VoteNo, VoteUnclear:
		return c, nil
	}
	return "", Invalid("choice", "must be yes, no or unclear")
}

// Counts devuelve true si el voto entra en el cálculo de consenso.
func (c VoteChoice) Counts() bool {
	return c == VoteYes || c == VoteNo
}

// Vote es el voto de resolución de un miembro de la comunidad.
// Inmutable una vez emitido; el reward se fija al votar.
type Vote struct {
	ID      string
	PollID  string
	VoterID string
	Choice  VoteChoice
	Reward  decimal.Decimal
	CastAt  time.Time
}

// VoterBonus es el complemento de reward acreditado a un votante al cerrar
// la votación, para que el total pagado alcance el presupuesto del poll.
type VoterBonus struct {
	PollID     string
	VoterID    string
	Amount     decimal.Decimal
	CreditedAt time.Time
}

// Tally es el recuento de votos de un poll.
type Tally struct {
	Yes     int
	No      int
	Unclear int
}

// TallyVotes cuenta los votos por opción.
func TallyVotes(votes []Vote) Tally {
	var t Tally
	for _, v := range votes {
		switch v.Choice {
		case VoteYes:
			t.Yes++
		case VoteNo:
			t.No++
		case VoteUnclear:
			t.Unclear++
		}
	}
	return t
}

// Valid devuelve yes + no (excluye unclear).
func (t Tally) Valid() int {
	return t.Yes + t.No
}

// Total devuelve todos los votos, incluidos unclear.
func (t Tally) Total() int {
	return t.Yes + t.No + t.Unclear
}
