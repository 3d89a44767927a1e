package cashflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// AggregateDaily buckets events into one entry per calendar day of
// [periodStart, periodEnd], days without activity included, and carries the
// running balance forward from initialBalance.
func AggregateDaily(events []Event, initialBalance decimal.Decimal, filter StatusFilter, periodStart, periodEnd time.Time) ([]DailyBucket, error) {
	period := Period{Start: truncateDay(periodStart), End: truncateDay(periodEnd)}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	if err := validateStatusFilter(filter); err != nil {
		return nil, err
	}

	days := period.Days()
	buckets := make([]DailyBucket, days)
	for i := range buckets {
		buckets[i] = DailyBucket{
			Date:         period.Start.AddDate(0, 0, i),
			Receipts:     decimal.Zero,
			Payments:     decimal.Zero,
			TransfersIn:  decimal.Zero,
			TransfersOut: decimal.Zero,
			Variation:    decimal.Zero,
		}
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	SortEvents(ordered)

	for _, event := range ordered {
		day := truncateDay(event.ResolvedDate)
		if !period.Contains(day) {
			continue
		}
		bucket := &buckets[period.index(day)]
		display := CountsForDisplay(event, filter)
		if display {
			switch {
			case event.IsTransfer():
				bucket.TransfersIn = bucket.TransfersIn.Add(event.AmountIn)
				bucket.TransfersOut = bucket.TransfersOut.Add(event.AmountOut)
			default:
				bucket.Receipts = bucket.Receipts.Add(event.AmountIn)
				bucket.Payments = bucket.Payments.Add(event.AmountOut)
			}
			bucket.Events = append(bucket.Events, event)
			bucket.EventCount++
		}
		if CountsForBalance(event, filter) {
			bucket.Variation = bucket.Variation.Add(event.Net())
		}
	}

	balance := initialBalance
	for i := range buckets {
		balance = balance.Add(buckets[i].Variation)
		buckets[i].RunningBalance = balance
	}
	return buckets, nil
}
