package market

import (
	"context"
	"fmt"
	"sort"

	"github.com/alejandrodnm/predictx/internal/domain"
)

// Poll devuelve un poll por id.
func (s *Service) Poll(ctx context.Context, id string) (domain.Poll, error) {
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("market.Poll: %w", err)
	}
	return p, nil
}

// Polls lista polls por estado (todos si no se pasa ninguno).
func (s *Service) Polls(ctx context.Context, statuses ...domain.PollStatus) ([]domain.Poll, error) {
	polls, err := s.store.ListPolls(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("market.Polls: %w", err)
	}
	return polls, nil
}

// TrendingPolls devuelve los n polls activos con más dinero en juego.
func (s *Service) TrendingPolls(ctx context.Context, n int) ([]domain.Poll, error) {
	polls, err := s.store.ListPolls(ctx, domain.PollActive)
	if err != nil {
		return nil, fmt.Errorf("market.TrendingPolls: %w", err)
	}
	sort.SliceStable(polls, func(i, j int) bool {
		return polls[i].Pool.Snapshot().Total().GreaterThan(polls[j].Pool.Snapshot().Total())
	})
	if n > 0 && len(polls) > n {
		polls = polls[:n]
	}
	return polls, nil
}

// Stake devuelve un stake por id.
func (s *Service) Stake(ctx context.Context, id string) (domain.Stake, error) {
	st, err := s.store.GetStake(ctx, id)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("market.Stake: %w", err)
	}
	return st, nil
}

// Vote devuelve un voto por id.
func (s *Service) Vote(ctx context.Context, id string) (domain.Vote, error) {
	v, err := s.store.GetVote(ctx, id)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("market.Vote: %w", err)
	}
	return v, nil
}

// VoterBonuses devuelve los complementos de reward acreditados al cerrar la votación.
func (s *Service) VoterBonuses(ctx context.Context, pollID string) ([]domain.VoterBonus, error) {
	bonuses, err := s.store.ListVoterBonuses(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("market.VoterBonuses: %w", err)
	}
	return bonuses, nil
}

// Stakes devuelve los stakes de un poll en orden de colocación.
func (s *Service) Stakes(ctx context.Context, pollID string) ([]domain.Stake, error) {
	stakes, err := s.store.ListStakesByPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("market.Stakes: %w", err)
	}
	return stakes, nil
}

// UserStakes devuelve los stakes de un usuario agrupados para el dashboard.
func (s *Service) UserStakes(ctx context.Context, userID string) (domain.UserStakes, error) {
	stakes, err := s.store.ListStakesByUser(ctx, userID)
	if err != nil {
		return domain.UserStakes{}, fmt.Errorf("market.UserStakes: %w", err)
	}
	return domain.GroupStakes(stakes), nil
}

// Votes devuelve los votos de un poll y su recuento.
func (s *Service) Votes(ctx context.Context, pollID string) ([]domain.Vote, domain.Tally, error) {
	votes, err := s.store.ListVotes(ctx, pollID)
	if err != nil {
		return nil, domain.Tally{}, fmt.Errorf("market.Votes: %w", err)
	}
	return votes, domain.TallyVotes(votes), nil
}

// Approvals devuelve las aprobaciones de admins registradas para un poll.
func (s *Service) Approvals(ctx context.Context, pollID string) ([]domain.Approval, error) {
	out, err := s.store.ListApprovals(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("market.Approvals: %w", err)
	}
	return out, nil
}

// Disputes devuelve las disputas de un poll.
func (s *Service) Disputes(ctx context.Context, pollID string) ([]domain.Dispute, error) {
	out, err := s.store.ListDisputes(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("market.Disputes: %w", err)
	}
	return out, nil
}

// Settlement devuelve la liquidación de un poll.
func (s *Service) Settlement(ctx context.Context, pollID string) (domain.Settlement, error) {
	st, err := s.store.GetSettlement(ctx, pollID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market.Settlement: %w", err)
	}
	return st, nil
}

// Transactions devuelve el historial de transacciones de un usuario.
func (s *Service) Transactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("market.Transactions: %w", err)
	}
	return txs, nil
}

// PlatformStats devuelve las métricas agregadas de la plataforma.
func (s *Service) PlatformStats(ctx context.Context) (domain.PlatformStats, error) {
	stats, err := s.store.PlatformStats(ctx)
	if err != nil {
		return domain.PlatformStats{}, fmt.Errorf("market.PlatformStats: %w", err)
	}
	return stats, nil
}
