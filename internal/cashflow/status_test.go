package cashflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want Status
	}{
		{name: "null is legacy settled", raw: nil, want: StatusSettled},
		{name: "empty is settled", raw: strPtr(""), want: StatusSettled},
		{name: "blank is settled", raw: strPtr("   "), want: StatusSettled},
		{name: "pago", raw: strPtr("pago"), want: StatusSettled},
		{name: "upper case PAGO", raw: strPtr("PAGO"), want: StatusSettled},
		{name: "paid", raw: strPtr("paid"), want: StatusSettled},
		{name: "settled", raw: strPtr("settled"), want: StatusSettled},
		{name: "liquidado", raw: strPtr("liquidado"), want: StatusSettled},
		{name: "quitado", raw: strPtr("quitado"), want: StatusSettled},
		{name: "pendente", raw: strPtr("pendente"), want: StatusPending},
		{name: "pending", raw: strPtr("pending"), want: StatusPending},
		{name: "aberto", raw: strPtr("aberto"), want: StatusPending},
		{name: "open", raw: strPtr("open"), want: StatusPending},
		{name: "unknown falls to pending", raw: strPtr("cancelado"), want: StatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CoerceStatus(tc.raw))
		})
	}
}

func TestCountsForDisplayAndBalance(t *testing.T) {
	settled := Event{Status: StatusSettled}
	pending := Event{Status: StatusPending}

	tests := []struct {
		filter         StatusFilter
		event          Event
		display, moves bool
	}{
		{FilterAll, settled, true, true},
		{FilterAll, pending, true, true},
		{FilterSettled, settled, true, true},
		{FilterSettled, pending, false, false},
		{FilterPending, settled, false, false},
		{FilterPending, pending, true, true},
	}
	for _, tc := range tests {
		t.Run(string(tc.filter)+"/"+string(tc.event.Status), func(t *testing.T) {
			assert.Equal(t, tc.display, CountsForDisplay(tc.event, tc.filter))
			assert.Equal(t, tc.moves, CountsForBalance(tc.event, tc.filter))
		})
	}
}
