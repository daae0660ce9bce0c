package domain

import (
	"strings"
	"time"
)

// Side es uno de los dos resultados de un poll binario.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide acepta "yes"/"no" sin importar mayúsculas.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", Invalid("side", "must be yes or no")
}

// Valid devuelve true si el lado es yes o no.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite devuelve el otro lado.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// PollCategory clasifica qué predice el poll.
type PollCategory string

const (
	CategoryPlayerEvent     PollCategory = "player-event"
	CategoryTeamEvent       PollCategory = "team-event"
	CategoryScorePrediction PollCategory = "score-prediction"
	CategoryOther           PollCategory = "other"
)

// Valid devuelve true si la categoría es conocida.
func (c PollCategory) Valid() bool {
	switch c {
	case CategoryPlayerEvent, CategoryTeamEvent, CategoryScorePrediction, CategoryOther:
		return true
	}
	return false
}

// PollStatus es el estado del poll en la máquina de resolución.
type PollStatus string

const (
	PollActive         PollStatus = "active"
	PollLocked         PollStatus = "locked"
	PollVoting         PollStatus = "voting"
	PollAdminReview    PollStatus = "admin-review"
	PollMultiSigReview PollStatus = "multi-sig-review"
	PollResolved       PollStatus = "resolved" // ventana de disputa abierta
	PollDispute        PollStatus = "dispute"
	PollFinal          PollStatus = "final"
)

// transitions: aristas permitidas de la máquina de estados.
var transitions = map[PollStatus][]PollStatus{
	PollActive:         {PollLocked},
	PollLocked:         {PollVoting},
	PollVoting:         {PollResolved, PollAdminReview, PollMultiSigReview},
	PollAdminReview:    {PollResolved},
	PollMultiSigReview: {PollResolved},
	PollResolved:       {PollDispute, PollFinal},
	PollDispute:        {PollFinal},
}

// CanTransition devuelve true si from → to es una arista válida.
func CanTransition(from, to PollStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InReview devuelve true si el poll espera aprobación de admins.
func (s PollStatus) InReview() bool {
	return s == PollAdminReview || s == PollMultiSigReview
}

const (
	QuestionMinLength = 10
	QuestionMaxLength = 120
)

// Poll es un mercado de predicción yes/no atado a un evento de un partido.
type Poll struct {
	ID             string
	MatchID        string
	Question       string
	Category       PollCategory
	CreatedBy      string
	CreatedAt      time.Time
	LockTime       time.Time // después de esto no se aceptan stakes
	Status         PollStatus
	Result         Side // "" mientras no hay resultado confirmado
	Pool           Pool
	EligibleVoters int // comunidad elegible (no stakers) para el ratio de participación

	VotingEndsAt  *time.Time
	ResolvedAt    *time.Time
	DisputeEndsAt *time.Time
	FinalizedAt   *time.Time
	SettledAt     *time.Time
}

// AcceptsStakes devuelve true si el poll está activo y no pasó el lock time.
func (p Poll) AcceptsStakes(now time.Time) bool {
	return p.Status == PollActive && now.Before(p.LockTime)
}

// HasResult devuelve true si el poll tiene un resultado confirmado.
func (p Poll) HasResult() bool {
	return p.Result.Valid()
}

// IsSettled devuelve true si los stakes del poll ya se liquidaron.
func (p Poll) IsSettled() bool {
	return p.SettledAt != nil
}

// ValidateQuestion aplica los límites de longitud de la pregunta.
func ValidateQuestion(q string) error {
	n := len([]rune(strings.TrimSpace(q)))
	if n < QuestionMinLength {
		return Invalid("question", "too short")
	}
	if n > QuestionMaxLength {
		return Invalid("question", "too long")
	}
	return nil
}
