package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	account := sanitizeInput(r.URL.Query().Get("account"))
	txs, err := s.ledger.Transactions(r.Context(), s.userID, account)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	account := sanitizeInput(r.URL.Query().Get("account"))
	d, err := s.ledger.Dashboard(r.Context(), s.userID, s.now(), account)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.ledger.Balances(r.Context(), s.userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r, s.now().In(s.ledger.Location()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	stats, err := s.ledger.MonthlyStats(r.Context(), s.userID, year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseYearMonth reads year and month from the query, defaulting to those of
// now.
func parseYearMonth(r *http.Request, now time.Time) (int, time.Month, error) {
	year, month := now.Year(), now.Month()
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return 0, 0, fmt.Errorf("%w: invalid year %q", errBadRequest, v)
		}
		year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("%w: invalid month %q", errBadRequest, v)
		}
		month = time.Month(m)
	}
	return year, month, nil
}
