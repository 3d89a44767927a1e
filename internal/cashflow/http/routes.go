package cashflowhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/cashflow/internal/platform/httpx"
)

const exportsPerMinute = 10

// MountRoutes registers the cash-flow endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportsPerMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.ErrRateLimited)
		}),
	)

	r.Route("/finance/cashflow", func(r chi.Router) {
		r.Get("/report", h.handleReport)
		r.Get("/movements", h.handleMovements)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleCSV)
			gr.Get("/export.xlsx", h.handleXLSX)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if company := r.URL.Query().Get("company_id"); company != "" {
		ip, err := httprate.KeyByIP(r)
		if err != nil {
			return "", err
		}
		return "company:" + company + ":ip:" + ip, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
