package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/middleware/ratelimit"
	"moneymanager/internal/services"
	"moneymanager/internal/sheets"
)

type (
	movementRequest struct {
		Account string      `json:"account"`
		Amount  amountField `json:"amount"`
		Reason  string      `json:"reason"`
		Date    string      `json:"date"`
	}

	reloadRequest struct {
		Customer string      `json:"customer"`
		Amount   amountField `json:"amount"`
		Account  string      `json:"account"`
		Paid     bool        `json:"paid"`
		Date     string      `json:"date"`
	}

	repairRequest struct {
		Customer string      `json:"customer"`
		Device   string      `json:"device"`
		Fault    string      `json:"fault"`
		Estimate amountField `json:"estimate"`
		Account  string      `json:"account"`
	}

	loanRequest struct {
		LoanAccount    string      `json:"loan_account"`
		Amount         amountField `json:"amount"`
		DepositAccount string      `json:"deposit_account"`
		Purpose        string      `json:"purpose"`
	}

	settleRequest struct {
		PIN     string      `json:"pin"`
		Price   amountField `json:"price"`
		Account string      `json:"account"`
	}

	updateRequest struct {
		Updates map[string]any `json:"updates"`
		PIN     string         `json:"pin"`
	}

	// loanFailure is returned when only the loan side was recorded.
	loanFailure struct {
		Error string           `json:"error"`
		Loan  core.Transaction `json:"loan"`
	}
)

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleMovement(w, r, s.txs.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleMovement(w, r, s.txs.Withdraw)
}

type movementFunc func(ctx context.Context, userID string, in services.MovementInput) (core.Transaction, error)

func (s *Server) handleMovement(w http.ResponseWriter, r *http.Request, record movementFunc) {
	var req movementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	amount, err := req.Amount.Amount()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	date, err := parseOptionalDate(req.Date, s.ledger.Location())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tx, err := record(r.Context(), s.userID, services.MovementInput{
		Account: sanitizeInput(req.Account),
		Amount:  amount,
		Reason:  sanitizeInput(req.Reason),
		Date:    date,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	amount, err := req.Amount.Amount()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	date, err := parseOptionalDate(req.Date, s.ledger.Location())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tx, err := s.txs.Reload(r.Context(), s.userID, services.ReloadInput{
		Customer: sanitizeInput(req.Customer),
		Amount:   amount,
		Date:     date,
		Account:  sanitizeInput(req.Account),
		Paid:     req.Paid,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	estimate, err := req.Estimate.Estimate()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tx, err := s.txs.Repair(r.Context(), s.userID, services.RepairInput{
		Customer: sanitizeInput(req.Customer),
		Device:   sanitizeInput(req.Device),
		Fault:    sanitizeInput(req.Fault),
		Estimate: estimate,
		Account:  sanitizeInput(req.Account),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	amount, err := req.Amount.Amount()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := s.txs.TakeLoan(r.Context(), s.userID, services.LoanInput{
		LoanAccount:    sanitizeInput(req.LoanAccount),
		Amount:         amount,
		DepositAccount: sanitizeInput(req.DepositAccount),
		Purpose:        sanitizeInput(req.Purpose),
	})
	if errors.Is(err, services.ErrLoanDepositFailed) {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Loan recorded without its deposit",
			applog.FieldTransactionID, res.Loan.ID,
			applog.FieldError, err)
		writeJSON(w, http.StatusBadGateway, loanFailure{Error: services.ErrLoanDepositFailed.Error(), Loan: res.Loan})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	// Price only matters for repairs; the service rejects a missing one there.
	price, err := req.Price.Estimate()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.withPIN(w, r, func() (core.Transaction, error) {
		return s.txs.Settle(r.Context(), s.userID, services.SettleInput{
			ID:      chi.URLParam(r, "id"),
			Secret:  req.PIN,
			Price:   price,
			Account: sanitizeInput(req.Account),
		})
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	updates, err := core.ParseFieldUpdates(req.Updates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.withPIN(w, r, func() (core.Transaction, error) {
		return s.txs.Update(r.Context(), s.userID, chi.URLParam(r, "id"), updates, req.PIN)
	})
}

// withPIN runs a PIN-protected change under the failed-attempt lockout.
func (s *Server) withPIN(w http.ResponseWriter, r *http.Request, change func() (core.Transaction, error)) {
	ctx := r.Context()
	client := s.detector.ExtractClientIP(r)
	if locked, wait := s.lockout.Locked(client); locked {
		s.metrics.IncrRateLimited("pin")
		w.Header().Set("Retry-After", ratelimit.RetryAfterHeader(wait))
		writeError(w, http.StatusTooManyRequests, "too many incorrect PIN attempts, try again later")
		return
	}

	tx, err := change()
	if errors.Is(err, sheets.ErrInvalidSecret) {
		s.metrics.IncrSecretFailure()
		if s.lockout.Failure(client) {
			applog.FromContext(ctx).WithComponent(applog.ComponentRateLimit).WarnContext(ctx, "Client locked out after incorrect PINs",
				applog.FieldClientIP, client)
		}
		writeServiceError(w, r, err)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.lockout.Reset(client)
	writeJSON(w, http.StatusOK, tx)
}
