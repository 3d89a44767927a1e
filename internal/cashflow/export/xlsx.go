package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
)

const (
	summarySheet   = "Resumo"
	movementsSheet = "Movimentacoes"
	// "#,##0.00"
	moneyNumFmt = 4
)

// WriteXLSX renders the report as a workbook with a daily summary sheet and a
// movement detail sheet.
func WriteXLSX(w io.Writer, report cashflow.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(movementsSheet); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return err
	}

	if err := writeSummarySheet(f, report, header, money); err != nil {
		return err
	}
	if err := writeMovementsSheet(f, Movements(report), header, money); err != nil {
		return err
	}
	return f.Write(w)
}

func writeSummarySheet(f *excelize.File, report cashflow.Report, header, money int) error {
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"Periodo", report.Period.Start, report.Period.End}); err != nil {
		return err
	}
	if err := f.SetSheetRow(summarySheet, "A2", &[]any{"Saldo inicial", amount(report.InitialBalance)}); err != nil {
		return err
	}
	if err := f.SetSheetRow(summarySheet, "A3", &[]any{"Saldo final", amount(report.FinalBalance)}); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "B2", "B3", money); err != nil {
		return err
	}

	const first = 5
	if err := setRow(f, summarySheet, 1, first, headerRow(dailyHeader)); err != nil {
		return err
	}
	row := first + 1
	for _, day := range report.Daily {
		if err := setRow(f, summarySheet, 1, row, []any{
			day.Date,
			amount(day.Receipts),
			amount(day.Payments),
			amount(day.TransfersIn),
			amount(day.TransfersOut),
			amount(day.Balance),
			day.EventCount,
		}); err != nil {
			return err
		}
		row++
	}
	if err := setRow(f, summarySheet, 1, row, []any{
		"total",
		amount(report.Totals.Receipts),
		amount(report.Totals.Payments),
		amount(report.Totals.TransfersIn),
		amount(report.Totals.TransfersOut),
		amount(report.FinalBalance),
		eventTotal(report),
	}); err != nil {
		return err
	}

	if err := styleRange(f, summarySheet, 1, first, len(dailyHeader), first, header); err != nil {
		return err
	}
	if err := styleRange(f, summarySheet, 2, first+1, 6, row, money); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "G", 18)
}

func writeMovementsSheet(f *excelize.File, events []cashflow.EventView, header, money int) error {
	if err := setRow(f, movementsSheet, 1, 1, headerRow(movementHeader)); err != nil {
		return err
	}
	for i, e := range events {
		if err := setRow(f, movementsSheet, 1, i+2, []any{
			e.Date,
			e.Kind,
			e.SourceID,
			deref(e.InstallmentID),
			deref(e.AccountID),
			amount(e.AmountIn),
			amount(e.AmountOut),
			e.Status,
			e.MovementKind,
			e.Description,
		}); err != nil {
			return err
		}
	}
	if err := styleRange(f, movementsSheet, 1, 1, len(movementHeader), 1, header); err != nil {
		return err
	}
	if len(events) > 0 {
		if err := styleRange(f, movementsSheet, 6, 2, 7, len(events)+1, money); err != nil {
			return err
		}
	}
	return f.SetColWidth(movementsSheet, "A", "J", 18)
}

func setRow(f *excelize.File, sheet string, col, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleRange(f *excelize.File, sheet string, fromCol, fromRow, toCol, toRow, style int) error {
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}

func headerRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

func amount(m cashflow.Money) float64 {
	return m.Decimal().Round(2).InexactFloat64()
}
