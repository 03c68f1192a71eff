// Package accounting exposes the finance core over HTTP: chart of
// accounts, ledger transactions, cost centers, currencies and reports.
package accounting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/costcenters"
	"github.com/aurum-erp/aurum-erp/internal/accounting/currencies"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/reports"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
	"github.com/aurum-erp/aurum-erp/internal/platform/httpx"
	"github.com/shopspring/decimal"
)

var supportedLangs = language.NewMatcher([]language.Tag{
	language.English,
	language.Arabic,
})

// Handler manages finance endpoints.
type Handler struct {
	logger      *slog.Logger
	accounts    *coa.Service
	ledger      *ledger.Service
	costCenters *costcenters.Service
	currencies  *currencies.Service
	reports     *reports.Service
	validate    *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, accounts *coa.Service, ledgerSvc *ledger.Service, costCenters *costcenters.Service, currencySvc *currencies.Service, reportSvc *reports.Service) *Handler {
	return &Handler{
		logger:      logger,
		accounts:    accounts,
		ledger:      ledgerSvc,
		costCenters: costCenters,
		currencies:  currencySvc,
		reports:     reportSvc,
		validate:    validator.New(),
	}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Get("/{id}/balance", h.accountBalance)
		r.Patch("/{id}", h.renameAccount)
		r.Put("/{id}/parent", h.reparentAccount)
		r.Post("/{id}/deactivate", h.deactivateAccount)
		r.Delete("/{id}", h.deleteAccount)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.listTransactions)
		r.Post("/", h.createTransaction)
		r.Get("/{id}", h.getTransaction)
		r.Put("/{id}", h.updateTransaction)
		r.Delete("/{id}", h.deleteTransaction)
		r.Post("/{id}/lock", h.lockTransaction)
		r.Post("/{id}/unlock", h.unlockTransaction)
		r.Post("/{id}/approve", h.approveTransaction)
		r.Post("/{id}/duplicate", h.duplicateTransaction)
	})

	r.Route("/cost-centers", func(r chi.Router) {
		r.Get("/", h.listCostCenters)
		r.Post("/", h.createCostCenter)
		r.Get("/{id}", h.getCostCenter)
		r.Post("/{id}/deactivate", h.deactivateCostCenter)
		r.Delete("/{id}", h.deleteCostCenter)
	})

	r.Route("/currencies", func(r chi.Router) {
		r.Get("/", h.listCurrencies)
		r.Post("/", h.createCurrency)
		r.Put("/{code}/rate", h.setCurrencyRate)
		r.Post("/{code}/base", h.setBaseCurrency)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/balance-sheet", h.balanceSheet)
		r.Get("/income-statement", h.incomeStatement)
		r.Get("/cash-flow", h.cashFlow)
		r.Get("/aged-receivables", h.agedReceivables)
		r.Get("/aged-payables", h.agedPayables)
	})
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrLockedTransaction),
		errors.Is(err, shared.ErrAlreadyApproved),
		errors.Is(err, shared.ErrNoOp):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrUnbalancedEntries),
		errors.Is(err, shared.ErrInsufficientEntries),
		errors.Is(err, shared.ErrInvalidEntry),
		errors.Is(err, shared.ErrStructural):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrContention):
		httpx.Problem(w, http.StatusServiceUnavailable, "Contention", err.Error())
	default:
		h.logger.Error("finance request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func requestLang(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	tag, _, _ := supportedLangs.Match(tags...)
	return tag
}

func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(dateLayout, raw)
}

// --- accounts ---

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	accounts, err := h.accounts.List(r.Context(), onlyActive)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	lang := requestLang(r)
	out := make([]accountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, summarizeAccount(a, lang))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	account, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summarizeAccount(account, requestLang(r)))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarizeAccount(account, requestLang(r)))
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
		return
	}
	balance, err := h.accounts.ComputeBalance(r.Context(), id, asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"as_of":      asOf.Format(dateLayout),
		"balance":    balance,
	})
}

func (h *Handler) renameAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req renameRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.accounts.Rename(r.Context(), id, req.Name, req.NameAr, req.Subtype)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarizeAccount(account, requestLang(r)))
}

func (h *Handler) reparentAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req reparentRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.accounts.Reparent(r.Context(), id, req.ParentID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarizeAccount(account, requestLang(r)))
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	if err := h.accounts.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	if err := h.accounts.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- transactions ---

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		txns []ledger.Transaction
		err  error
	)
	if typ := r.URL.Query().Get("type"); typ != "" {
		txns, err = h.ledger.ListByType(r.Context(), ledger.TransactionType(typ))
	} else {
		txns, err = h.ledger.List(r.Context())
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]transactionSummary, 0, len(txns))
	for _, t := range txns {
		out = append(out, summarizeTransaction(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	txn, err := h.ledger.CreateTransaction(r.Context(), draft)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summarizeTransaction(txn))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	txn, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarizeTransaction(txn))
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	var req transactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	txn, err := h.ledger.UpdateTransaction(r.Context(), id, draft)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summarizeTransaction(txn))
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	if err := h.ledger.DeleteTransaction(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lockTransaction(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, true)
}

func (h *Handler) unlockTransaction(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, false)
}

func (h *Handler) setLock(w http.ResponseWriter, r *http.Request, locked bool) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	if locked {
		err = h.ledger.Lock(r.Context(), id)
	} else {
		err = h.ledger.Unlock(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approveTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	var req approveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ledger.Approve(r.Context(), id, req.ApproverID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) duplicateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return
	}
	txn, err := h.ledger.Duplicate(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summarizeTransaction(txn))
}

// --- cost centers ---

func (h *Handler) listCostCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.costCenters.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, centers)
}

func (h *Handler) createCostCenter(w http.ResponseWriter, r *http.Request) {
	var req costCenterRequest
	if !h.decode(w, r, &req) {
		return
	}
	cc, err := h.costCenters.Register(r.Context(), req.Code, req.Name, req.NameAr, req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cc)
}

func (h *Handler) getCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid cost center id")
		return
	}
	cc, err := h.costCenters.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cc)
}

func (h *Handler) deactivateCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid cost center id")
		return
	}
	if err := h.costCenters.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid cost center id")
		return
	}
	if err := h.costCenters.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- currencies ---

func (h *Handler) listCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.currencies.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate := decimal.NewFromInt(1)
	if req.Rate != "" {
		var err error
		rate, err = decimal.NewFromString(req.Rate)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid rate")
			return
		}
	}
	c, err := h.currencies.Register(r.Context(), req.Code, req.Name, rate)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) setCurrencyRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid rate")
		return
	}
	if err := h.currencies.SetRate(r.Context(), chi.URLParam(r, "code"), rate); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setBaseCurrency(w http.ResponseWriter, r *http.Request) {
	if err := h.currencies.SetBase(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- reports ---

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
		return
	}
	report, err := h.reports.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
		return
	}
	report, err := h.reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) reportRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	start, err := queryDate(r, "from", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := queryDate(r, "to", now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.reportRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	report, err := h.reports.IncomeStatement(r.Context(), start, end)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.reportRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	report, err := h.reports.CashFlowStatement(r.Context(), start, end)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) agedReceivables(w http.ResponseWriter, r *http.Request) {
	h.aging(w, r, h.reports.AgedReceivables)
}

func (h *Handler) agedPayables(w http.ResponseWriter, r *http.Request) {
	h.aging(w, r, h.reports.AgedPayables)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request, build func(context.Context, time.Time) (reports.AgingReport, error)) {
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
		return
	}
	report, err := build(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
