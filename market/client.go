// Package market fetches quotes, symbol search results and daily history
// from a Yahoo Finance compatible endpoint.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Yahoo Finance query host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData is returned when the upstream answers without a usable result
var ErrNoData = errors.New("no market data returned")

// Quote is the subset of a live quote the service relies on
type Quote struct {
	Symbol               string  `json:"symbol"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
}

// SearchResult is one symbol match
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// DailyClose is one point on a daily price chart
type DailyClose struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Client talks to the market-data HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a market-data client with a 30 second request timeout
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				RegularMarketPrice   *float64 `json:"regularMarketPrice"`
				RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
	} `json:"quotes"`
}

// getJSON performs a GET and decodes the body into dest
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	// Yahoo rejects requests without a browser-like agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; broker-calls/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("market request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("market API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode market response: %w", err)
	}
	return nil
}

func (c *Client) chart(ctx context.Context, symbol string, query url.Values) (*chartResponse, error) {
	var out chartResponse
	if err := c.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query, &out); err != nil {
		return nil, err
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("market API error %s: %s", out.Chart.Error.Code, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	return &out, nil
}

// Quote returns the live price and today's range for a symbol
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	out, err := c.chart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	// A quote without price or day range cannot be reconciled; zero is not a price
	meta := out.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || meta.RegularMarketDayHigh == nil || meta.RegularMarketDayLow == nil {
		return nil, fmt.Errorf("quote %s: incomplete quote: %w", symbol, ErrNoData)
	}
	q := &Quote{
		Symbol:               meta.Symbol,
		RegularMarketPrice:   *meta.RegularMarketPrice,
		RegularMarketDayHigh: *meta.RegularMarketDayHigh,
		RegularMarketDayLow:  *meta.RegularMarketDayLow,
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

// Search finds symbols matching a free-text query
func (c *Client) Search(ctx context.Context, q string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []SearchResult{}, nil
	}

	var out searchResponse
	query := url.Values{"q": {q}, "quotesCount": {"10"}, "newsCount": {"0"}}
	if err := c.getJSON(ctx, "/v1/finance/search", query, &out); err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	results := make([]SearchResult, 0, len(out.Quotes))
	for _, item := range out.Quotes {
		name := item.ShortName
		if name == "" {
			name = item.LongName
		}
		if name == "" {
			name = item.Symbol
		}
		results = append(results, SearchResult{Symbol: item.Symbol, Name: name})
	}
	return results, nil
}

// History returns daily closes between from and to. Days without a close are skipped.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]DailyClose, error) {
	query := url.Values{
		"interval": {"1d"},
		"period1":  {fmt.Sprintf("%d", from.Unix())},
		"period2":  {fmt.Sprintf("%d", to.Unix())},
	}
	out, err := c.chart(ctx, symbol, query)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	result := out.Chart.Result[0]
	var closes []*float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	points := make([]DailyClose, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, DailyClose{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: *closes[i],
		})
	}
	return points, nil
}
