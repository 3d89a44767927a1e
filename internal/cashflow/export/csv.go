package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
)

var dailyHeader = []string{
	"data", "recebimentos", "pagamentos", "transferencias_entrada",
	"transferencias_saida", "saldo_dia", "total_movimentacoes",
}

var movementHeader = []string{
	"data", "tipo", "origem_id", "parcela_id", "conta_id",
	"valor_entrada", "valor_saida", "status", "tipo_movimentacao", "descricao",
}

// WriteDailyCSV emits one row per reported day followed by a totals row.
func WriteDailyCSV(w io.Writer, report cashflow.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(dailyHeader); err != nil {
		return err
	}
	for _, day := range report.Daily {
		if err := writer.Write([]string{
			day.Date,
			day.Receipts.String(),
			day.Payments.String(),
			day.TransfersIn.String(),
			day.TransfersOut.String(),
			day.Balance.String(),
			strconv.Itoa(day.EventCount),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{
		"total",
		report.Totals.Receipts.String(),
		report.Totals.Payments.String(),
		report.Totals.TransfersIn.String(),
		report.Totals.TransfersOut.String(),
		report.FinalBalance.String(),
		strconv.Itoa(eventTotal(report)),
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteMovementsCSV prints every event of the report detail.
func WriteMovementsCSV(w io.Writer, events []cashflow.EventView) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(movementHeader); err != nil {
		return err
	}
	for _, e := range events {
		if err := writer.Write(movementRecord(e)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func movementRecord(e cashflow.EventView) []string {
	return []string{
		e.Date,
		e.Kind,
		e.SourceID,
		deref(e.InstallmentID),
		deref(e.AccountID),
		e.AmountIn.String(),
		e.AmountOut.String(),
		e.Status,
		e.MovementKind,
		e.Description,
	}
}

// Movements flattens the daily detail of a report in chronological order.
func Movements(report cashflow.Report) []cashflow.EventView {
	out := make([]cashflow.EventView, 0, eventTotal(report))
	for _, day := range report.Daily {
		out = append(out, day.Events...)
	}
	return out
}

func eventTotal(report cashflow.Report) int {
	total := 0
	for _, day := range report.Daily {
		total += day.EventCount
	}
	return total
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
