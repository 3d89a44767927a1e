package cashflowhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
)

const companyID = "0b7c8a3e-1d52-4f0e-9d6a-2f3a4b5c6d01"

type fakeService struct {
	lastQuery  cashflow.Query
	lastParams cashflow.Params
	err        error
	block      bool
	events     []cashflow.Event
}

func (f *fakeService) Report(ctx context.Context, q cashflow.Query) (cashflow.Report, error) {
	f.lastQuery = q
	if f.block {
		<-ctx.Done()
		return cashflow.Report{}, ctx.Err()
	}
	if f.err != nil {
		return cashflow.Report{}, f.err
	}
	buckets, err := cashflow.AggregateDaily(f.events, decimal.RequireFromString("10"), q.Params.StatusFilter, q.Params.Period.Start, q.Params.Period.End)
	if err != nil {
		return cashflow.Report{}, err
	}
	return cashflow.FormatReport(buckets, decimal.RequireFromString("10"), q.Params.Period, q.Filters(), nil), nil
}

func (f *fakeService) Movements(ctx context.Context, p cashflow.Params) ([]cashflow.Event, error) {
	f.lastParams = p
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func newTestRouter(svc *fakeService) (http.Handler, *Handler) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc)
	h.WithNow(func() time.Time { return time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC) })
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, h
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestReportDefaultsToCurrentMonth(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestRouter(svc)

	rec := get(t, router, "/finance/cashflow/report?company_id="+companyID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"inicio": "2024-02-01", "fim": "2024-02-29"}, body["periodo"])
	assert.Len(t, body["dados_diarios"], 29)
	assert.Equal(t, 10.0, body["saldo_inicial"])
}

func TestReportParsesFilters(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestRouter(svc)
	accounts := "5a1e0c2d-7b34-4c8e-a1f2-0d9e8c7b6a01,5a1e0c2d-7b34-4c8e-a1f2-0d9e8c7b6a02"

	rec := get(t, router, "/finance/cashflow/report?company_id="+companyID+
		"&data_inicio=2024-01-01&data_fim=2024-01-07&tipo_data=vencimento&status=pendente&incluir_saldos=true&contas="+accounts)
	require.Equal(t, http.StatusOK, rec.Code)

	p := svc.lastQuery.Params
	assert.Equal(t, cashflow.ModeDueDate, p.ReportingMode)
	assert.Equal(t, cashflow.FilterPending, p.StatusFilter)
	assert.Len(t, p.AccountIDs, 2)
	assert.True(t, svc.lastQuery.IncludeBalances)
	assert.Equal(t, 7, p.Period.Days())
}

func TestReportValidationErrors(t *testing.T) {
	router, _ := newTestRouter(&fakeService{})
	targets := []string{
		"/finance/cashflow/report",
		"/finance/cashflow/report?company_id=nope",
		"/finance/cashflow/report?company_id=" + companyID + "&data_inicio=2024-03-01&data_fim=2024-02-01",
		"/finance/cashflow/report?company_id=" + companyID + "&incluir_saldos=talvez",
		"/finance/cashflow/report?company_id=" + companyID + "&tipo_data=semanal",
	}
	for _, target := range targets {
		rec := get(t, router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestReportUpstreamErrors(t *testing.T) {
	svc := &fakeService{err: &cashflow.DataSourceError{Source: "ledger", Err: errors.New("conn refused")}}
	router, h := newTestRouter(svc)

	rec := get(t, router, "/finance/cashflow/report?company_id="+companyID)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "conn refused")

	svc.err = errors.New("unexpected")
	rec = get(t, router, "/finance/cashflow/report?company_id="+companyID)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	svc.err = nil
	svc.block = true
	h.WithTimeout(10 * time.Millisecond)
	rec = get(t, router, "/finance/cashflow/report?company_id="+companyID)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestMovementsEndpoint(t *testing.T) {
	source := uuid.MustParse("3f2d2c0a-8f5e-4b8a-9d53-6a1c4c1b2e77")
	svc := &fakeService{events: []cashflow.Event{{
		SourceKind:   cashflow.SourceLedger,
		SourceID:     source,
		ResolvedDate: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		AmountIn:     decimal.RequireFromString("12.5"),
		AmountOut:    decimal.Zero,
		Status:       cashflow.StatusSettled,
		MovementKind: cashflow.MovementInflow,
	}}}
	router, _ := newTestRouter(svc)

	rec := get(t, router, "/finance/cashflow/movements?company_id="+companyID+"&contas=5a1e0c2d-7b34-4c8e-a1f2-0d9e8c7b6a01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.lastParams.AccountIDs, 1)

	var body MovementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Movements, 1)
	assert.Equal(t, source.String(), body.Movements[0].SourceID)
	assert.Equal(t, "12.50", body.Movements[0].AmountIn.String())
	assert.Equal(t, "entrada", body.Movements[0].MovementKind)
}

func TestExportEndpoints(t *testing.T) {
	router, _ := newTestRouter(&fakeService{})
	base := "?company_id=" + companyID + "&data_inicio=2024-02-01&data_fim=2024-02-03"

	rec := get(t, router, "/finance/cashflow/export.csv"+base)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Equal(t, `attachment; filename="fluxo-caixa-2024-02-01-2024-02-03.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 5)

	rec = get(t, router, "/finance/cashflow/export.xlsx"+base)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx payload is a zip archive")
}

func TestExportRateLimit(t *testing.T) {
	router, _ := newTestRouter(&fakeService{})
	target := "/finance/cashflow/export.csv?company_id=" + companyID

	for i := 0; i < exportsPerMinute; i++ {
		require.Equal(t, http.StatusOK, get(t, router, target).Code)
	}
	rec := get(t, router, target)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// JSON endpoints are not limited.
	assert.Equal(t, http.StatusOK, get(t, router, "/finance/cashflow/report?company_id="+companyID).Code)
}
