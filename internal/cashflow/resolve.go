package cashflow

import "time"

// InstallmentDates carries the date columns of a receivable or payable installment.
type InstallmentDates struct {
	Due      time.Time
	Payment  *time.Time
	Clearing *time.Time
}

// ResolveDate picks the business date an installment is reported on.
//
// Due-date mode always returns the due date. Payment-date mode returns the
// clearing date, then the payment date, then the due date for settled
// installments, and the due date for anything not settled.
func ResolveDate(mode ReportingMode, dates InstallmentDates, status Status) time.Time {
	if mode == ModePaymentDate && status == StatusSettled {
		if dates.Clearing != nil && !dates.Clearing.IsZero() {
			return truncateDay(*dates.Clearing)
		}
		if dates.Payment != nil && !dates.Payment.IsZero() {
			return truncateDay(*dates.Payment)
		}
	}
	return truncateDay(dates.Due)
}
