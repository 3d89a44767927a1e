package cashflow

import "strings"

// CoerceStatus maps a raw, nullable status column onto Status.
//
// Rows written before the status column existed carry NULL and are treated
// as settled. Unrecognised values are treated as pending.
func CoerceStatus(raw *string) Status {
	if raw == nil {
		return StatusSettled
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "":
		return StatusSettled
	case "pago", "paga", "paid", "settled", "liquidado", "quitado":
		return StatusSettled
	default:
		return StatusPending
	}
}

// CountsForDisplay decides whether an event feeds the per-day display totals.
func CountsForDisplay(e Event, filter StatusFilter) bool {
	return filter == FilterAll || Status(filter) == e.Status
}

// CountsForBalance decides whether an event moves the running balance.
//
// Under FilterSettled only settled events move the balance. Every other filter
// moves it with the same events it displays, so FilterAll yields a projected
// balance that includes pending items.
func CountsForBalance(e Event, filter StatusFilter) bool {
	if filter == FilterSettled {
		return e.Status == StatusSettled
	}
	return CountsForDisplay(e, filter)
}
