package cashflowhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
	"github.com/odyssey-erp/cashflow/internal/cashflow/export"
	"github.com/odyssey-erp/cashflow/internal/platform/httpx"
)

const defaultRequestTimeout = 15 * time.Second

// ReportService defines the report contract used by the handler.
type ReportService interface {
	Report(ctx context.Context, q cashflow.Query) (cashflow.Report, error)
	Movements(ctx context.Context, p cashflow.Params) ([]cashflow.Event, error)
}

// Handler serves the cash-flow report endpoints.
type Handler struct {
	logger  *slog.Logger
	service ReportService
	bufPool sync.Pool
	now     func() time.Time
	timeout time.Duration
}

// NewHandler constructs the cash-flow HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:  logger,
		service: service,
		now:     time.Now,
		timeout: defaultRequestTimeout,
	}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock. Missing dates default to the month of
// this clock.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithTimeout bounds each report build.
func (h *Handler) WithTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// MovementsResponse is the body of the movements endpoint.
type MovementsResponse struct {
	Success   bool                 `json:"success"`
	Period    cashflow.PeriodView  `json:"periodo"`
	Total     int                  `json:"total"`
	Movements []cashflow.EventView `json:"movimentacoes"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseQuery(r)
	if err != nil {
		h.respondError(w, "parse report request", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.Report(ctx, query)
	if err != nil {
		h.respondError(w, "build report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseQuery(r)
	if err != nil {
		h.respondError(w, "parse movements request", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	events, err := h.service.Movements(ctx, query.Params)
	if err != nil {
		h.respondError(w, "unify movements", err)
		return
	}
	resp := MovementsResponse{
		Success: true,
		Period: cashflow.PeriodView{
			Start: query.Params.Period.Start.Format("2006-01-02"),
			End:   query.Params.Period.End.Format("2006-01-02"),
		},
		Total:     len(events),
		Movements: make([]cashflow.EventView, 0, len(events)),
	}
	for _, e := range events {
		resp.Movements = append(resp.Movements, cashflow.EventViewOf(e))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, ".csv", "text/csv; charset=utf-8", func(buf *bytes.Buffer, report cashflow.Report) error {
		return export.WriteDailyCSV(buf, report)
	})
}

func (h *Handler) handleXLSX(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, ".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(buf *bytes.Buffer, report cashflow.Report) error {
		return export.WriteXLSX(buf, report)
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, ext, fallbackType string, write func(*bytes.Buffer, cashflow.Report) error) {
	query, err := h.parseQuery(r)
	if err != nil {
		h.respondError(w, "parse export request", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.Report(ctx, query)
	if err != nil {
		h.respondError(w, "build report", err)
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()
	if err := write(buf, report); err != nil {
		h.respondError(w, "write "+strings.TrimPrefix(ext, "."), err)
		return
	}

	filename := fmt.Sprintf("fluxo-caixa-%s-%s%s", report.Period.Start, report.Period.End, ext)
	w.Header().Set("Content-Type", contentType(ext, fallbackType))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream export", slog.String("format", ext), slog.Any("error", err))
	}
}

func contentType(ext, fallback string) string {
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	return fallback
}

func (h *Handler) parseQuery(r *http.Request) (cashflow.Query, error) {
	values := r.URL.Query()
	req := cashflow.Request{
		CompanyID:     values.Get("company_id"),
		PeriodStart:   values.Get("data_inicio"),
		PeriodEnd:     values.Get("data_fim"),
		ReportingMode: values.Get("tipo_data"),
		StatusFilter:  values.Get("status"),
	}
	if raw := strings.TrimSpace(values.Get("incluir_saldos")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return cashflow.Query{}, &cashflow.ValidationError{Field: "incluir_saldos", Reason: fmt.Sprintf("expected a boolean, got %q", raw)}
		}
		req.IncludeBalances = include
	}
	for _, list := range values["contas"] {
		req.AccountIDs = append(req.AccountIDs, strings.Split(list, ",")...)
	}
	return cashflow.ParseRequest(req, h.now())
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, cashflow.ErrValidation):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, context.Canceled):
		h.logger.Warn(op, slog.String("reason", "client went away"))
	case errors.Is(err, cashflow.ErrDataSource), errors.Is(err, context.DeadlineExceeded):
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrUpstream, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
