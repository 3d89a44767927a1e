package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
)

const testCompany = "0b7c8a3e-1d52-4f0e-9d6a-2f3a4b5c6d01"

type stubReports struct {
	err   error
	query cashflow.Query
}

func (s *stubReports) Report(ctx context.Context, q cashflow.Query) (cashflow.Report, error) {
	s.query = q
	if s.err != nil {
		return cashflow.Report{}, s.err
	}
	buckets, err := cashflow.AggregateDaily([]cashflow.Event{{
		SourceKind:   cashflow.SourceReceivable,
		ResolvedDate: q.Params.Period.Start,
		AmountIn:     decimal.RequireFromString("1234.56"),
		AmountOut:    decimal.Zero,
		Status:       cashflow.StatusSettled,
	}}, decimal.Zero, q.Params.StatusFilter, q.Params.Period.Start, q.Params.Period.End)
	if err != nil {
		return cashflow.Report{}, err
	}
	return cashflow.FormatReport(buckets, decimal.Zero, q.Params.Period, q.Filters(), nil), nil
}

func fixedNow() time.Time { return time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC) }

func TestParseReportFlags(t *testing.T) {
	opts, err := ParseReportFlags([]string{
		"--company", testCompany, "--from", "2024-02-01", "--to", "2024-02-07",
		"--mode", "vencimento", "--status", "pago", "--balances", "--json",
		"--accounts", "a,b",
	}, new(bytes.Buffer))
	require.NoError(t, err)
	require.Equal(t, testCompany, opts.Company)
	require.Equal(t, "2024-02-07", opts.To)
	require.True(t, opts.Balances)
	require.True(t, opts.JSONOutput)
	require.Equal(t, []string{"a", "b"}, opts.Accounts)

	_, err = ParseReportFlags([]string{"--unknown"}, new(bytes.Buffer))
	require.Error(t, err)
}

func TestReportCommandJSON(t *testing.T) {
	svc := &stubReports{}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := NewReportCLI(svc, fixedNow).ReportCommand(context.Background(), ReportOptions{
		Company:    testCompany,
		From:       "2024-02-01",
		To:         "2024-02-03",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, ExitOK, code)
	require.Empty(t, stderr.String())

	var report map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.Equal(t, true, report["success"])
	require.Equal(t, 1234.56, report["saldo_final"])
	require.Len(t, report["dados_diarios"], 3)
}

func TestReportCommandHumanDefaultsToCurrentMonth(t *testing.T) {
	svc := &stubReports{}
	stdout := new(bytes.Buffer)

	code := NewReportCLI(svc, fixedNow).ReportCommand(context.Background(), ReportOptions{
		Company: testCompany,
		Stdout:  stdout,
		Stderr:  new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
	require.Equal(t, 29, svc.query.Params.Period.Days())

	out := stdout.String()
	require.True(t, strings.HasPrefix(out, "Fluxo de caixa 2024-02-01 a 2024-02-29"))
	require.Contains(t, out, "01/02/2024")
	require.Contains(t, out, "Saldo final: R$ ")
}

func TestReportCommandExitCodes(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := NewReportCLI(&stubReports{}, fixedNow).ReportCommand(context.Background(), ReportOptions{
		Company: "not-a-uuid",
		Stdout:  new(bytes.Buffer),
		Stderr:  stderr,
	})
	require.Equal(t, ExitValidation, code)
	require.Contains(t, stderr.String(), "company_id")

	failing := &stubReports{err: &cashflow.DataSourceError{Source: "ledger", Err: errors.New("down")}}
	stderr.Reset()
	code = NewReportCLI(failing, fixedNow).ReportCommand(context.Background(), ReportOptions{
		Company: testCompany,
		Stdout:  new(bytes.Buffer),
		Stderr:  stderr,
	})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr.String(), "ledger")
}
