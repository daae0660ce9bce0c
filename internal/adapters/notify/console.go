package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/alejandrodnm/predictx/internal/ports"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// Console implementa ports.Reporter escribiendo tablas en texto plano.
type Console struct {
	out     io.Writer
	compact bool
}

var _ ports.Reporter = (*Console)(nil)

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(compact bool) *Console {
	return &Console{out: os.Stdout, compact: compact}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, compact bool) *Console {
	return &Console{out: w, compact: compact}
}

// ReportPolls imprime los polls con su pool y reparto yes/no.
func (c *Console) ReportPolls(_ context.Context, polls []domain.Poll) error {
	now := time.Now().Format("15:04:05")
	if len(polls) == 0 {
		fmt.Fprintf(c.out, "[%s] no polls found\n", now)
		return nil
	}

	if c.compact {
		c.printCompact(polls)
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d polls\n", now, len(polls))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Question", "Category", "Status", "Yes", "No", "Split", "Stakes", "Locks")
	for i, p := range polls {
		snap := p.Pool.Snapshot()
		yes, no := snap.Percentages()
		table.Append(
			fmt.Sprintf("%d", i+1),
			compactName(p.Question, 40),
			string(p.Category),
			statusLabel(p),
			usd(snap.Yes),
			usd(snap.No),
			fmt.Sprintf("%d/%d", yes, no),
			fmt.Sprintf("%d", p.Pool.Participants()),
			p.LockTime.Format("01-02 15:04"),
		)
	}
	table.Render()
	return nil
}

// printCompact imprime una línea por poll.
func (c *Console) printCompact(polls []domain.Poll) {
	var sb strings.Builder
	for _, p := range polls {
		snap := p.Pool.Snapshot()
		yes, no := snap.Percentages()
		fmt.Fprintf(&sb, "%-8s %s pool %s (%d/%d)\n",
			statusLabel(p), compactName(p.Question, 40), usd(snap.Total()), yes, no)
	}
	fmt.Fprint(c.out, sb.String())
}

// ReportSettlement imprime el reparto de un poll liquidado.
func (c *Console) ReportSettlement(_ context.Context, poll domain.Poll, s domain.Settlement, stakes []domain.Stake) error {
	fmt.Fprintf(c.out, "\n=== SETTLEMENT: %s ===\n", poll.Question)
	fmt.Fprintf(c.out, "  Result:        %s\n", strings.ToUpper(string(s.Result)))
	fmt.Fprintf(c.out, "  Total pool:    %s\n", usd(s.Total))
	fmt.Fprintf(c.out, "  Platform fee:  %s\n", usd(s.Fee))
	fmt.Fprintf(c.out, "  Paid out:      %s (%d won, %d lost)\n", usd(s.PaidOut), s.Winners, s.Losers)
	if s.Refunded {
		fmt.Fprintln(c.out, "  Nobody picked the winning side: all stakes refunded")
	}

	if len(stakes) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("User", "Side", "Stake", "Status", "Payout", "Profit", "ROI")
	for _, st := range stakes {
		table.Append(
			st.UserID,
			strings.ToUpper(string(st.Side)),
			usd(st.Amount),
			string(st.Status),
			usd(st.Payout),
			usd(st.Profit),
			roiLabel(st.ROI, st.ROIDefined),
		)
	}
	table.Render()
	return nil
}

// PrintPreview imprime la proyección de un stake antes de confirmarlo.
func (c *Console) PrintPreview(poll domain.Poll, side domain.Side, amount decimal.Decimal, w domain.Winnings) {
	snap := poll.Pool.Snapshot()
	fmt.Fprintf(c.out, "\n=== PREVIEW: %s on %s ===\n", usd(amount), strings.ToUpper(string(side)))
	fmt.Fprintf(c.out, "  Poll:          %s\n", poll.Question)
	fmt.Fprintf(c.out, "  Current pool:  yes %s | no %s\n", usd(snap.Yes), usd(snap.No))
	fmt.Fprintf(c.out, "  Gross payout:  %s\n", usd(w.Gross))
	fmt.Fprintf(c.out, "  Platform fee:  %s\n", usd(w.Fee))
	fmt.Fprintf(c.out, "  Net payout:    %s\n", usd(w.Net))
	fmt.Fprintf(c.out, "  Profit:        %s (ROI %s)\n", usd(w.Profit), roiLabel(w.ROI, w.ROIDefined))
}

// PrintUserStakes imprime el dashboard de un usuario.
func (c *Console) PrintUserStakes(userID string, balance decimal.Decimal, us domain.UserStakes) {
	fmt.Fprintf(c.out, "\n=== %s | balance %s ===\n", userID, usd(balance))
	fmt.Fprintf(c.out, "  active %d | pending %d | completed %d\n",
		len(us.Active), len(us.Pending), len(us.Completed))

	all := make([]domain.Stake, 0, len(us.Active)+len(us.Pending)+len(us.Completed))
	all = append(all, us.Active...)
	all = append(all, us.Pending...)
	all = append(all, us.Completed...)
	if len(all) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Poll", "Side", "Stake", "Status", "Potential", "Profit")
	for _, st := range all {
		profit := "-"
		if st.Status.Completed() {
			profit = usd(st.Profit)
		}
		table.Append(
			shortID(st.PollID),
			strings.ToUpper(string(st.Side)),
			usd(st.Amount),
			string(st.Status),
			usd(st.PotentialWinnings),
			profit,
		)
	}
	table.Render()
}

// PrintStats imprime las métricas de la plataforma.
func (c *Console) PrintStats(s domain.PlatformStats) {
	fmt.Fprintln(c.out, "\n=== PLATFORM ===")
	fmt.Fprintf(c.out, "  Total value locked:   %s\n", usd(s.TotalValueLocked))
	fmt.Fprintf(c.out, "  Active predictions:   %d\n", s.ActivePredictions)
	fmt.Fprintf(c.out, "  Community members:    %d\n", s.CommunityMembers)
	fmt.Fprintf(c.out, "  Total payouts:        %s\n", usd(s.TotalPayouts))
	fmt.Fprintf(c.out, "  Platform fees:        %s\n", usd(s.TotalFees))
	fmt.Fprintf(c.out, "  Voter rewards:        %s\n", usd(s.TotalVoterRewards))
}

// PrintTransactions imprime el historial de transacciones de un usuario.
func (c *Console) PrintTransactions(userID string, txs []domain.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintf(c.out, "  %s: no transactions\n", userID)
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Kind", "Amount", "Status", "Ledger", "Hash", "Description")
	for _, tx := range txs {
		table.Append(
			string(tx.Kind),
			usd(tx.Amount),
			string(tx.Status),
			fmt.Sprintf("%d", tx.Ledger),
			shortID(tx.Hash),
			compactName(tx.Description, 32),
		)
	}
	table.Render()
}

func statusLabel(p domain.Poll) string {
	if p.IsSettled() {
		return "settled"
	}
	if p.HasResult() {
		return fmt.Sprintf("%s:%s", p.Status, p.Result)
	}
	return string(p.Status)
}

func usd(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(domain.MoneyPlaces)
	}
	return "$" + d.StringFixed(domain.MoneyPlaces)
}

func roiLabel(roi decimal.Decimal, defined bool) string {
	if !defined {
		return "n/a"
	}
	return roi.StringFixed(2) + "%"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
