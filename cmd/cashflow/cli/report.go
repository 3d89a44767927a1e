package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
	"github.com/odyssey-erp/cashflow/internal/cashflow/export"
)

// Exit codes of the report command.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
)

// ReportOptions defines available flags for the report command.
type ReportOptions struct {
	Company    string
	From       string
	To         string
	Mode       string
	Status     string
	Balances   bool
	Accounts   []string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ParseReportFlags parses the report sub-command arguments.
func ParseReportFlags(args []string, stderr io.Writer) (ReportOptions, error) {
	var (
		opts     ReportOptions
		accounts string
	)
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Company, "company", "", "company id (uuid, required)")
	fs.StringVar(&opts.From, "from", "", "first day YYYY-MM-DD (default: first day of the current month)")
	fs.StringVar(&opts.To, "to", "", "last day YYYY-MM-DD (default: last day of the current month)")
	fs.StringVar(&opts.Mode, "mode", "", "installment date: pagamento|vencimento (default pagamento)")
	fs.StringVar(&opts.Status, "status", "", "status filter: todos|pago|pendente (default todos)")
	fs.BoolVar(&opts.Balances, "balances", false, "include per-account balances")
	fs.StringVar(&accounts, "accounts", "", "comma separated bank account ids")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return ReportOptions{}, err
	}
	if accounts != "" {
		opts.Accounts = strings.Split(accounts, ",")
	}
	return opts, nil
}

// ReportBuilder produces formatted reports.
type ReportBuilder interface {
	Report(ctx context.Context, q cashflow.Query) (cashflow.Report, error)
}

// ReportCLI prints cash-flow reports to a terminal.
type ReportCLI struct {
	service ReportBuilder
	now     func() time.Time
}

// NewReportCLI constructs the helper. now resolves the default month.
func NewReportCLI(service ReportBuilder, now func() time.Time) *ReportCLI {
	if now == nil {
		now = time.Now
	}
	return &ReportCLI{service: service, now: now}
}

// ReportCommand builds the report and prints it. It returns ExitValidation for
// rejected input and ExitFailure for any other error.
func (c *ReportCLI) ReportCommand(ctx context.Context, opts ReportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	query, err := cashflow.ParseRequest(cashflow.Request{
		CompanyID:       opts.Company,
		PeriodStart:     opts.From,
		PeriodEnd:       opts.To,
		ReportingMode:   opts.Mode,
		StatusFilter:    opts.Status,
		IncludeBalances: opts.Balances,
		AccountIDs:      opts.Accounts,
	}, c.now())
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return ExitValidation
	}
	report, err := c.service.Report(ctx, query)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		if errors.Is(err, cashflow.ErrValidation) {
			return ExitValidation
		}
		return ExitFailure
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "report: encode json: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}
	if err := renderReportHuman(opts.Stdout, report); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return ExitFailure
	}
	return ExitOK
}

func renderReportHuman(out io.Writer, report cashflow.Report) error {
	_, _ = fmt.Fprintf(out, "Fluxo de caixa %s a %s (data de %s, status %s)\n",
		report.Period.Start, report.Period.End, report.Filters.DateType, report.Filters.Status)
	_, _ = fmt.Fprintf(out, "Saldo inicial: %s\n\n", brl(report.InitialBalance))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Data\tRecebimentos\tPagamentos\tTransf. entrada\tTransf. saida\tSaldo\tMovs\t")
	for _, day := range report.Daily {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			day.FormattedDate,
			brl(day.Receipts),
			brl(day.Payments),
			brl(day.TransfersIn),
			brl(day.TransfersOut),
			brl(day.Balance),
			day.EventCount)
	}
	_, _ = fmt.Fprintf(tw, "Total\t%s\t%s\t%s\t%s\t%s\t\t\n",
		brl(report.Totals.Receipts),
		brl(report.Totals.Payments),
		brl(report.Totals.TransfersIn),
		brl(report.Totals.TransfersOut),
		brl(report.FinalBalance))
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\nSaldo final: %s (variacao %s)\n", brl(report.FinalBalance), brl(report.Totals.PeriodVariation))
	if len(report.AccountBalances) > 0 {
		_, _ = fmt.Fprintln(out, "\nSaldos por conta:")
		for _, acc := range report.AccountBalances {
			_, _ = fmt.Fprintf(out, "  %s %s: inicial %s, atual %s\n", acc.AccountID, acc.Description, brl(acc.InitialBalance), brl(acc.CurrentBalance))
		}
	}
	return nil
}

func brl(m cashflow.Money) string {
	return export.FormatBRL(m.Decimal())
}
