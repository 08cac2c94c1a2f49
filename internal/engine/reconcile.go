package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/optlens/optlens/internal/models"
)

// Reconcile matches open orders to display rows. A row is annotated with
// the first unclaimed order (row order, then order order) whose legs close
// the row's option legs exactly; each order annotates at most one row.
// Orders on a different underlying are never considered for a row. The
// residual pool of unclaimed orders is returned alongside the annotated
// rows; inputs are not modified.
//
// Matching is deliberately greedy with no backtracking: a globally optimal
// assignment is not attempted.
func Reconcile(rows []models.DisplayRow, orders []models.Order, now time.Time) ([]models.DisplayRow, []models.Order) {
	annotated := make([]models.DisplayRow, len(rows))
	copy(annotated, rows)

	claimed := make([]bool, len(orders))

	for i := range annotated {
		row := &annotated[i]
		if !row.HasOptionLegs() {
			continue
		}
		for j := range orders {
			if claimed[j] || orders[j].BaseSymbol != row.BaseSymbol {
				continue
			}
			if !isExitOrder(row.OptionLegs, &orders[j], now) {
				continue
			}
			claimed[j] = true
			row.ExitOrderID = orders[j].OrderID
			row.ExitLabel = exitLabel(&orders[j], row)
			break
		}
	}

	unmatched := make([]models.Order, 0, len(orders))
	for j := range orders {
		if !claimed[j] {
			unmatched = append(unmatched, orders[j])
		}
	}
	return annotated, unmatched
}

// isExitOrder reports whether the order's legs close the row legs exactly:
// same leg count, and after sorting both sides by symbol every index agrees
// on (symbol, unsigned quantity, strike, DTE) with a closing action for the
// leg's direction. The order leg's DTE is computed live from its expiry
// parts; the row leg uses its stored DTE.
func isExitOrder(rowLegs []*models.Position, order *models.Order, now time.Time) bool {
	if len(order.Legs) != len(rowLegs) {
		return false
	}

	orderLegs := make([]models.OrderLeg, len(order.Legs))
	copy(orderLegs, order.Legs)
	sort.Slice(orderLegs, func(i, j int) bool { return orderLegs[i].Symbol < orderLegs[j].Symbol })

	positions := make([]*models.Position, len(rowLegs))
	copy(positions, rowLegs)
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	for i := range positions {
		pos, ol := positions[i], &orderLegs[i]
		if ol.Symbol != pos.Symbol {
			return false
		}
		if ol.OrderedQuantity != pos.AbsQuantity() {
			return false
		}
		if ol.Strike() != pos.Strike() {
			return false
		}
		if !dteEqual(ol.DTE(now), pos.DTE) {
			return false
		}
		switch {
		case pos.Quantity > 0:
			if !ol.ClosesLong() {
				return false
			}
		case pos.Quantity < 0:
			if !ol.ClosesShort() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func dteEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// exitLabel formats the implied profit of filling the order at its limit
// price against the row's cost basis, e.g. "42% @3.00". When the row has no
// cost basis only the price is shown.
func exitLabel(order *models.Order, row *models.DisplayRow) string {
	exitValue := order.LimitPrice * float64(row.AbsQuantity()) * row.Multiplier()
	cost := math.Abs(row.TotalCost)
	if cost == 0 {
		return fmt.Sprintf("@%.2f", order.LimitPrice)
	}
	sign := 1.0
	if row.TotalCost < 0 {
		// Credit position: profit is what remains of the credit after
		// buying back.
		sign = -1
	}
	profit := sign * (exitValue - cost)
	pctRounded := int(math.Round(profit / cost * 100))
	return fmt.Sprintf("%d%% @%.2f", pctRounded, order.LimitPrice)
}

// ExplodeUnmatched flattens orders that matched no row into one display row
// per leg, each carrying the order's pricing fields.
func ExplodeUnmatched(orders []models.Order) []models.OrderRow {
	var rows []models.OrderRow
	for i := range orders {
		o := &orders[i]
		for j := range o.Legs {
			leg := &o.Legs[j]
			rows = append(rows, models.OrderRow{
				OrderID:           o.OrderID,
				LimitPrice:        o.LimitPrice,
				PriceType:         o.PriceType,
				OrderTerm:         o.OrderTerm,
				Status:            o.Status,
				BaseSymbol:        o.BaseSymbol,
				NetPrice:          o.NetPrice,
				NetBid:            o.NetBid,
				NetAsk:            o.NetAsk,
				Symbol:            leg.Symbol,
				SymbolDescription: leg.SymbolDescription,
				OrderAction:       leg.OrderAction,
				OrderedQuantity:   leg.OrderedQuantity,
				FilledQuantity:    leg.FilledQuantity,
				StrikePrice:       leg.StrikePrice,
				CallPut:           leg.CallPut,
				Bid:               leg.Bid,
				Ask:               leg.Ask,
			})
		}
	}
	return rows
}
