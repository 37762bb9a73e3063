package api

import (
	"net/http"
	"strings"

	"broker-calls/market"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, market.Catalog())
}

// handleSearchStocks proxies symbol search. Failures answer an empty list.
func (s *Server) handleSearchStocks(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []market.SearchResult{})
		return
	}

	results, err := s.market.Search(r.Context(), q)
	if err != nil {
		s.logger.Warn("stock search failed", zap.String("q", q), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, []market.SearchResult{})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStockPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	quote, err := s.quotes.Quote(r.Context(), symbol)
	if err != nil {
		s.logger.Warn("price lookup failed", zap.String("symbol", symbol), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch price"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"price": quote.RegularMarketPrice})
}
