package cashflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settledIn(date, amount string) Event {
	return Event{SourceKind: SourceReceivable, ResolvedDate: day(date), ResolvedTimestamp: day(date), AmountIn: dec(amount), AmountOut: decimal.Zero, Status: StatusSettled}
}

func pendingOut(date, amount string) Event {
	return Event{SourceKind: SourcePayable, ResolvedDate: day(date), ResolvedTimestamp: day(date), AmountIn: decimal.Zero, AmountOut: dec(amount), Status: StatusPending}
}

func TestAggregateDailyEmptyPeriodIsContiguous(t *testing.T) {
	buckets, err := AggregateDaily(nil, dec("250.00"), FilterAll, day("2024-02-01"), day("2024-02-29"))
	require.NoError(t, err)
	require.Len(t, buckets, 29)

	for i, b := range buckets {
		assert.Equal(t, day("2024-02-01").AddDate(0, 0, i), b.Date)
		assert.Equal(t, "250.00", b.RunningBalance.StringFixed(2))
		assert.Zero(t, b.EventCount)
		assert.True(t, b.Receipts.IsZero())
	}
}

func TestAggregateDailySingleDay(t *testing.T) {
	buckets, err := AggregateDaily([]Event{settledIn("2024-02-05", "10.00")}, decimal.Zero, FilterAll, day("2024-02-05"), day("2024-02-05"))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "10.00", buckets[0].RunningBalance.StringFixed(2))
}

func TestAggregateDailyRejectsInvertedPeriod(t *testing.T) {
	_, err := AggregateDaily(nil, decimal.Zero, FilterAll, day("2024-02-05"), day("2024-02-04"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = AggregateDaily(nil, decimal.Zero, "weird", day("2024-02-04"), day("2024-02-05"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAggregateDailyRunningBalance(t *testing.T) {
	events := []Event{
		pendingOut("2024-02-03", "30.00"),
		settledIn("2024-02-01", "100.00"),
		settledIn("2024-02-03", "20.00"),
		settledIn("2024-03-01", "999.00"),
	}
	buckets, err := AggregateDaily(events, dec("1000.00"), FilterSettled, day("2024-02-01"), day("2024-02-04"))
	require.NoError(t, err)
	require.Len(t, buckets, 4)

	assert.Equal(t, "1100.00", buckets[0].RunningBalance.StringFixed(2))
	assert.Equal(t, "1100.00", buckets[1].RunningBalance.StringFixed(2))
	assert.Equal(t, "1120.00", buckets[2].RunningBalance.StringFixed(2))
	assert.Equal(t, "1120.00", buckets[3].RunningBalance.StringFixed(2))
	assert.Equal(t, 1, buckets[2].EventCount, "pending payment is hidden under the settled filter")
	assert.True(t, buckets[2].Payments.IsZero())

	prev := dec("1000.00")
	for _, b := range buckets {
		assert.True(t, prev.Add(b.Variation).Equal(b.RunningBalance))
		prev = b.RunningBalance
	}
}

func TestAggregateDailyProjectedBalanceUnderAll(t *testing.T) {
	events := []Event{settledIn("2024-02-01", "100.00"), pendingOut("2024-02-02", "30.00")}
	buckets, err := AggregateDaily(events, decimal.Zero, FilterAll, day("2024-02-01"), day("2024-02-02"))
	require.NoError(t, err)

	assert.Equal(t, "30.00", buckets[1].Payments.StringFixed(2))
	assert.Equal(t, "70.00", buckets[1].RunningBalance.StringFixed(2))
}

func TestAggregateDailyPendingFilter(t *testing.T) {
	events := []Event{settledIn("2024-02-01", "100.00"), pendingOut("2024-02-02", "30.00")}
	buckets, err := AggregateDaily(events, dec("10.00"), FilterPending, day("2024-02-01"), day("2024-02-02"))
	require.NoError(t, err)

	assert.Zero(t, buckets[0].EventCount)
	assert.True(t, buckets[0].Receipts.IsZero())
	assert.Equal(t, 1, buckets[1].EventCount)
	assert.Equal(t, "-20.00", buckets[1].RunningBalance.StringFixed(2))
}

func TestAggregateDailySeparatesTransfers(t *testing.T) {
	events := []Event{
		{SourceKind: SourceLedger, MovementKind: MovementTransfer, ResolvedDate: day("2024-02-01"), AmountIn: decimal.Zero, AmountOut: dec("40.00"), Status: StatusSettled},
		{SourceKind: SourceLedger, MovementKind: MovementTransfer, ResolvedDate: day("2024-02-01"), AmountIn: dec("40.00"), AmountOut: decimal.Zero, Status: StatusSettled},
		{SourceKind: SourceLedger, MovementKind: MovementOutflow, ResolvedDate: day("2024-02-01"), AmountIn: decimal.Zero, AmountOut: dec("15.00"), Status: StatusSettled},
	}
	buckets, err := AggregateDaily(events, dec("100.00"), FilterAll, day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)

	b := buckets[0]
	assert.Equal(t, "40.00", b.TransfersIn.StringFixed(2))
	assert.Equal(t, "40.00", b.TransfersOut.StringFixed(2))
	assert.Equal(t, "15.00", b.Payments.StringFixed(2))
	assert.True(t, b.Receipts.IsZero())
	assert.Equal(t, "85.00", b.RunningBalance.StringFixed(2))
	assert.Equal(t, 3, b.EventCount)
}

func TestAggregateDailyDoesNotReorderInput(t *testing.T) {
	events := []Event{settledIn("2024-02-02", "1.00"), settledIn("2024-02-01", "2.00")}
	_, err := AggregateDaily(events, decimal.Zero, FilterAll, day("2024-02-01"), day("2024-02-02"))
	require.NoError(t, err)
	assert.Equal(t, day("2024-02-02"), events[0].ResolvedDate)
}

func TestAggregateDailyLongPeriodReachesEnd(t *testing.T) {
	start, end := day("1700-01-01"), day("2025-01-01")
	events := []Event{settledIn("2024-12-31", "5.00"), settledIn("1700-01-01", "1.00")}

	buckets, err := AggregateDaily(events, decimal.Zero, FilterAll, start, end)
	require.NoError(t, err)
	require.Len(t, buckets, 118705)

	last := len(buckets) - 1
	assert.Equal(t, start, buckets[0].Date)
	assert.Equal(t, end, buckets[last].Date)
	assert.Equal(t, "1.00", buckets[0].Receipts.StringFixed(2))
	assert.Equal(t, "5.00", buckets[last-1].Receipts.StringFixed(2))
	assert.Equal(t, "6.00", buckets[last].RunningBalance.StringFixed(2))
}

func TestPeriodIgnoresTimeOfDay(t *testing.T) {
	p := Period{
		Start: time.Date(2024, 2, 1, 15, 30, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 29, p.Days())
	assert.True(t, p.Contains(day("2024-02-01")))
	assert.True(t, p.Contains(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(day("2024-03-01")))
	assert.Equal(t, Period{Start: day("2024-02-01"), End: day("2024-02-29")}, p.Normalize())

	sameDay := Period{Start: time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC), End: day("2024-02-01")}
	assert.NoError(t, validatePeriod(sameDay))
}
