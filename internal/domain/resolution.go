package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// AutoApproveThreshold: con ≥85% de consenso el resultado se confirma solo.
	AutoApproveThreshold = decimal.NewFromFloat(0.85)
	// AdminReviewThreshold: entre 60% y 85% decide un admin; debajo, multi-sig.
	AdminReviewThreshold = decimal.NewFromFloat(0.60)
)

const (
	VotingWindow      = 2 * time.Hour
	DisputeWindow     = 24 * time.Hour
	MultiSigApprovals = 3
)

// Route es la decisión del router sobre un recuento de votos.
type Route struct {
	Pathway PollStatus      // resolved | admin-review | multi-sig-review
	Share   decimal.Decimal // cuota del lado mayoritario (0 si no hay votos válidos)
	Winner  Side            // solo significativo si Pathway == resolved
}

// ConsensusShare devuelve max(yes,no)/(yes+no). ok=false sin votos válidos.
func ConsensusShare(yesVotes, noVotes int) (share decimal.Decimal, ok bool) {
	valid := yesVotes + noVotes
	if valid <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(int64(max(yesVotes, noVotes))).Div(decimal.NewFromInt(int64(valid))), true
}

// RouteResolution mapea un recuento (sin unclear) a una vía de resolución.
//
//	sin votos válidos  → admin-review
//	share ≥ 0.85       → resolved (gana la mayoría)
//	0.60 ≤ share < 0.85 → admin-review
//	share < 0.60       → multi-sig-review
func RouteResolution(yesVotes, noVotes int) Route {
	share, ok := ConsensusShare(yesVotes, noVotes)
	if !ok {
		return Route{Pathway: PollAdminReview, Share: decimal.Zero}
	}

	winner := SideYes
	if noVotes > yesVotes {
		winner = SideNo
	}

	switch {
	case share.GreaterThanOrEqual(AutoApproveThreshold):
		return Route{Pathway: PollResolved, Share: share, Winner: winner}
	case share.GreaterThanOrEqual(AdminReviewThreshold):
		return Route{Pathway: PollAdminReview, Share: share, Winner: winner}
	default:
		return Route{Pathway: PollMultiSigReview, Share: share, Winner: winner}
	}
}

// Approval es la aprobación de un admin sobre el resultado de un poll en revisión.
type Approval struct {
	PollID     string
	AdminID    string
	Result     Side
	ApprovedAt time.Time
}

// RequiredApprovals devuelve cuántas aprobaciones necesita el estado dado.
func RequiredApprovals(status PollStatus) int {
	switch status {
	case PollAdminReview:
		return 1
	case PollMultiSigReview:
		return MultiSigApprovals
	}
	return 0
}

// Dispute es una impugnación presentada durante la ventana de disputa.
type Dispute struct {
	ID          string
	PollID      string
	UserID      string
	Reason      string
	SubmittedAt time.Time
	ResolvedBy  string
	Ruling      Side // resultado final tras la disputa
	ResolvedAt  *time.Time
}
