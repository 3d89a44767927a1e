package cashflow

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Request is the raw, string-typed input accepted at the HTTP and CLI boundary.
type Request struct {
	CompanyID       string   `json:"company_id" validate:"required,uuid"`
	PeriodStart     string   `json:"data_inicio" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd       string   `json:"data_fim" validate:"omitempty,datetime=2006-01-02"`
	ReportingMode   string   `json:"tipo_data" validate:"omitempty,oneof=paymentDate dueDate"`
	StatusFilter    string   `json:"status" validate:"omitempty,oneof=all settled pending"`
	IncludeBalances bool     `json:"incluir_saldos"`
	AccountIDs      []string `json:"contas" validate:"omitempty,dive,uuid"`
}

// Query is a validated Request with every default resolved.
type Query struct {
	Params          Params
	IncludeBalances bool
}

// Filters returns the filters echoed back in the report.
func (q Query) Filters() AppliedFilters {
	return AppliedFilters{
		ReportingMode:   q.Params.ReportingMode,
		StatusFilter:    q.Params.StatusFilter,
		IncludeBalances: q.IncludeBalances,
		AccountIDs:      q.Params.AccountIDs,
	}
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

var modeAliases = map[string]ReportingMode{
	"paymentdate": ModePaymentDate,
	"pagamento":   ModePaymentDate,
	"payment":     ModePaymentDate,
	"duedate":     ModeDueDate,
	"vencimento":  ModeDueDate,
	"due":         ModeDueDate,
}

var statusAliases = map[string]StatusFilter{
	"all":      FilterAll,
	"todos":    FilterAll,
	"settled":  FilterSettled,
	"pago":     FilterSettled,
	"pending":  FilterPending,
	"pendente": FilterPending,
}

// Normalize maps the Portuguese and case variants onto the canonical enum values.
// Unknown values are left untouched so validation rejects them.
func (r Request) Normalize() Request {
	r.CompanyID = strings.TrimSpace(r.CompanyID)
	r.PeriodStart = strings.TrimSpace(r.PeriodStart)
	r.PeriodEnd = strings.TrimSpace(r.PeriodEnd)
	if mode, ok := modeAliases[strings.ToLower(strings.TrimSpace(r.ReportingMode))]; ok {
		r.ReportingMode = string(mode)
	}
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(r.StatusFilter))]; ok {
		r.StatusFilter = string(status)
	}
	accounts := make([]string, 0, len(r.AccountIDs))
	for _, id := range r.AccountIDs {
		if id = strings.TrimSpace(id); id != "" {
			accounts = append(accounts, id)
		}
	}
	r.AccountIDs = accounts
	return r
}

// DefaultPeriod returns the calendar month containing now.
func DefaultPeriod(now time.Time) Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: first, End: first.AddDate(0, 1, -1)}
}

// ParseRequest validates a Request and resolves its defaults against now.
// It never touches the database.
func ParseRequest(req Request, now time.Time) (Query, error) {
	req = req.Normalize()
	if err := requestValidator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Query{}, invalid(fe.Field(), "failed %q check on value %q", fe.Tag(), fe.Value())
		}
		return Query{}, invalid("request", "%v", err)
	}

	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		return Query{}, invalid("company_id", "not a uuid: %q", req.CompanyID)
	}

	period := DefaultPeriod(now)
	if req.PeriodStart != "" {
		if period.Start, err = time.Parse(dateLayout, req.PeriodStart); err != nil {
			return Query{}, invalid("data_inicio", "expected YYYY-MM-DD, got %q", req.PeriodStart)
		}
	}
	if req.PeriodEnd != "" {
		if period.End, err = time.Parse(dateLayout, req.PeriodEnd); err != nil {
			return Query{}, invalid("data_fim", "expected YYYY-MM-DD, got %q", req.PeriodEnd)
		}
	}
	if err := validatePeriod(period); err != nil {
		return Query{}, err
	}

	accounts := make([]uuid.UUID, 0, len(req.AccountIDs))
	for _, raw := range req.AccountIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Query{}, invalid("contas", "not a uuid: %q", raw)
		}
		accounts = append(accounts, id)
	}

	mode := ModePaymentDate
	if req.ReportingMode != "" {
		mode = ReportingMode(req.ReportingMode)
	}
	filter := FilterAll
	if req.StatusFilter != "" {
		filter = StatusFilter(req.StatusFilter)
	}

	return Query{
		Params: Params{
			CompanyID:     companyID,
			Period:        period,
			ReportingMode: mode,
			StatusFilter:  filter,
			AccountIDs:    accounts,
		},
		IncludeBalances: req.IncludeBalances,
	}, nil
}

func validatePeriod(p Period) error {
	if p.Start.IsZero() || p.End.IsZero() {
		return invalid("periodo", "start and end are required")
	}
	if n := p.Normalize(); n.Start.After(n.End) {
		return invalid("periodo", "start %s is after end %s", n.Start.Format(dateLayout), n.End.Format(dateLayout))
	}
	return nil
}

// Validate checks Params built without ParseRequest.
func (p Params) Validate() error {
	if p.CompanyID == uuid.Nil {
		return invalid("company_id", "required")
	}
	if err := validatePeriod(p.Period); err != nil {
		return err
	}
	switch p.ReportingMode {
	case ModePaymentDate, ModeDueDate:
	default:
		return invalid("tipo_data", "unknown reporting mode %q", p.ReportingMode)
	}
	if err := validateStatusFilter(p.StatusFilter); err != nil {
		return err
	}
	for _, id := range p.AccountIDs {
		if id == uuid.Nil {
			return invalid("contas", "nil account id")
		}
	}
	return nil
}

func validateStatusFilter(f StatusFilter) error {
	switch f {
	case FilterAll, FilterSettled, FilterPending:
		return nil
	default:
		return invalid("status", "unknown status filter %q", f)
	}
}
