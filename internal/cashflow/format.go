package cashflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const displayDateLayout = "02/01/2006"

// Money renders a decimal with two places. Arithmetic stays on decimal.Decimal;
// rounding only happens here.
type Money decimal.Decimal

// MoneyOf converts a decimal to its presentation form.
func MoneyOf(d decimal.Decimal) Money { return Money(d) }

// Decimal returns the underlying value.
func (m Money) Decimal() decimal.Decimal { return decimal.Decimal(m) }

// String returns the value fixed at two decimal places.
func (m Money) String() string { return decimal.Decimal(m).StringFixed(2) }

// MarshalJSON writes the value as a JSON number with two decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts quoted or bare numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}

// Report is the response of the cash-flow report.
type Report struct {
	Success         bool                 `json:"success"`
	InitialBalance  Money                `json:"saldo_inicial"`
	FinalBalance    Money                `json:"saldo_final"`
	Period          PeriodView           `json:"periodo"`
	Filters         FiltersView          `json:"filtros_aplicados"`
	Daily           []DayView            `json:"dados_diarios"`
	AccountBalances []AccountBalanceView `json:"saldos_contas,omitempty"`
	Totals          TotalsView           `json:"totais"`
}

// PeriodView is the reported date range.
type PeriodView struct {
	Start string `json:"inicio"`
	End   string `json:"fim"`
}

// FiltersView echoes the applied filters.
type FiltersView struct {
	DateType        string   `json:"tipo_data"`
	Status          string   `json:"status"`
	IncludeBalances bool     `json:"incluir_saldos"`
	Accounts        []string `json:"contas_filtradas,omitempty"`
}

// DayView is one daily bucket.
type DayView struct {
	Date          string      `json:"data"`
	FormattedDate string      `json:"data_formatada"`
	Receipts      Money       `json:"recebimentos"`
	Payments      Money       `json:"pagamentos"`
	TransfersIn   Money       `json:"transferencias_entrada"`
	TransfersOut  Money       `json:"transferencias_saida"`
	Balance       Money       `json:"saldo_dia"`
	EventCount    int         `json:"total_movimentacoes"`
	Events        []EventView `json:"movimentacoes"`
}

// EventView is one unified event in the report detail.
type EventView struct {
	Kind          string  `json:"tipo"`
	SourceID      string  `json:"origem_id"`
	InstallmentID *string `json:"parcela_id"`
	AccountID     *string `json:"conta_id"`
	Date          string  `json:"data"`
	AmountIn      Money   `json:"valor_entrada"`
	AmountOut     Money   `json:"valor_saida"`
	Status        string  `json:"status"`
	MovementKind  string  `json:"tipo_movimentacao,omitempty"`
	Description   string  `json:"descricao"`
}

// AccountBalanceView is one entry of saldos_contas.
type AccountBalanceView struct {
	AccountID      string `json:"conta_id"`
	Description    string `json:"descricao"`
	CurrentBalance Money  `json:"saldo_atual"`
	InitialBalance Money  `json:"saldo_inicial"`
	AccountType    string `json:"tipo_conta"`
}

// TotalsView sums the daily metrics.
type TotalsView struct {
	Receipts        Money `json:"total_recebimentos"`
	Payments        Money `json:"total_pagamentos"`
	TransfersIn     Money `json:"total_transferencias_entrada"`
	TransfersOut    Money `json:"total_transferencias_saida"`
	PeriodVariation Money `json:"variacao_periodo"`
}

// Summarize returns the final balance and the totals of a bucket list.
// An empty list keeps the initial balance.
func Summarize(buckets []DailyBucket, initialBalance decimal.Decimal) (decimal.Decimal, Totals) {
	totals := Totals{
		Receipts:     decimal.Zero,
		Payments:     decimal.Zero,
		TransfersIn:  decimal.Zero,
		TransfersOut: decimal.Zero,
	}
	for _, b := range buckets {
		totals.Receipts = totals.Receipts.Add(b.Receipts)
		totals.Payments = totals.Payments.Add(b.Payments)
		totals.TransfersIn = totals.TransfersIn.Add(b.TransfersIn)
		totals.TransfersOut = totals.TransfersOut.Add(b.TransfersOut)
	}
	final := initialBalance
	if len(buckets) > 0 {
		final = buckets[len(buckets)-1].RunningBalance
	}
	totals.PeriodVariation = final.Sub(initialBalance)
	return final, totals
}

// FormatReport shapes buckets, balances and filters into the report response.
func FormatReport(buckets []DailyBucket, initialBalance decimal.Decimal, period Period, filters AppliedFilters, accountBalances []AccountBalance) Report {
	final, totals := Summarize(buckets, initialBalance)
	report := Report{
		Success:        true,
		InitialBalance: MoneyOf(initialBalance),
		FinalBalance:   MoneyOf(final),
		Period: PeriodView{
			Start: period.Start.Format(dateLayout),
			End:   period.End.Format(dateLayout),
		},
		Filters: FiltersView{
			DateType:        dateTypeLabel(filters.ReportingMode),
			Status:          statusFilterLabel(filters.StatusFilter),
			IncludeBalances: filters.IncludeBalances,
			Accounts:        uuidStrings(filters.AccountIDs),
		},
		Daily: make([]DayView, 0, len(buckets)),
		Totals: TotalsView{
			Receipts:        MoneyOf(totals.Receipts),
			Payments:        MoneyOf(totals.Payments),
			TransfersIn:     MoneyOf(totals.TransfersIn),
			TransfersOut:    MoneyOf(totals.TransfersOut),
			PeriodVariation: MoneyOf(totals.PeriodVariation),
		},
	}
	for _, b := range buckets {
		report.Daily = append(report.Daily, dayView(b))
	}
	if filters.IncludeBalances {
		report.AccountBalances = make([]AccountBalanceView, 0, len(accountBalances))
		for _, ab := range accountBalances {
			report.AccountBalances = append(report.AccountBalances, AccountBalanceView{
				AccountID:      ab.AccountID.String(),
				Description:    ab.Description,
				CurrentBalance: MoneyOf(ab.CurrentBalance),
				InitialBalance: MoneyOf(ab.InitialBalance),
				AccountType:    ab.AccountType,
			})
		}
	}
	return report
}

func dayView(b DailyBucket) DayView {
	view := DayView{
		Date:          b.Date.Format(dateLayout),
		FormattedDate: b.Date.Format(displayDateLayout),
		Receipts:      MoneyOf(b.Receipts),
		Payments:      MoneyOf(b.Payments),
		TransfersIn:   MoneyOf(b.TransfersIn),
		TransfersOut:  MoneyOf(b.TransfersOut),
		Balance:       MoneyOf(b.RunningBalance),
		EventCount:    b.EventCount,
		Events:        make([]EventView, 0, len(b.Events)),
	}
	for _, e := range b.Events {
		view.Events = append(view.Events, EventViewOf(e))
	}
	return view
}

// EventViewOf converts an event to its presentation form.
func EventViewOf(e Event) EventView {
	return EventView{
		Kind:          sourceKindLabel(e.SourceKind),
		SourceID:      e.SourceID.String(),
		InstallmentID: uuidString(e.InstallmentID),
		AccountID:     uuidString(e.AccountID),
		Date:          e.ResolvedDate.Format(dateLayout),
		AmountIn:      MoneyOf(e.AmountIn),
		AmountOut:     MoneyOf(e.AmountOut),
		Status:        statusLabel(e.Status),
		MovementKind:  movementKindLabel(e.MovementKind),
		Description:   e.Description,
	}
}

func sourceKindLabel(k SourceKind) string {
	switch k {
	case SourceLedger:
		return "movimentacao"
	case SourceReceivable:
		return "conta_receber"
	case SourcePayable:
		return "conta_pagar"
	}
	return string(k)
}

func statusLabel(s Status) string {
	if s == StatusSettled {
		return "pago"
	}
	return "pendente"
}

func statusFilterLabel(f StatusFilter) string {
	switch f {
	case FilterSettled:
		return "pago"
	case FilterPending:
		return "pendente"
	}
	return "todos"
}

func dateTypeLabel(m ReportingMode) string {
	if m == ModeDueDate {
		return "vencimento"
	}
	return "pagamento"
}

func movementKindLabel(k MovementKind) string {
	switch k {
	case MovementInflow:
		return "entrada"
	case MovementOutflow:
		return "saida"
	case MovementTransfer:
		return "transferencia"
	}
	return ""
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func uuidStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
