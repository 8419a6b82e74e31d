// Package currency downloads daily exchange-rate quotes from the Yahoo
// Finance chart API.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

// ErrNoData is returned when the API knows the symbol but has no quotes in
// the requested range, or does not know the symbol at all.
var ErrNoData = errors.New("currency: no quotes returned")

// Quote is one daily candle in the layout yfinance exports.
type Quote struct {
	Date     string  `csv:"Date"`
	Open     float64 `csv:"Open"`
	High     float64 `csv:"High"`
	Low      float64 `csv:"Low"`
	Close    float64 `csv:"Close"`
	AdjClose float64 `csv:"Adj Close"`
	Volume   int64   `csv:"Volume"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Client fetches chart data with pacing and retries.
type Client struct {
	baseURL    string
	userAgent  string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	limiter    *rate.Limiter
	log        *logger.Entry
}

func NewClient(cfg config.CurrencyConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/",
		userAgent:  cfg.UserAgent,
		maxRetries: retries,
		retryDelay: time.Second,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		log:        logger.GetLogger().WithComponent("currency"),
	}
}

// History returns the daily quotes of symbol from from (inclusive) to to
// (exclusive). Days without a close are left out.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]Quote, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "history")
	params.Set("includeAdjustedClose", "true")
	endpoint := c.baseURL + url.PathEscape(symbol) + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, retry, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return parseChart(body)
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		c.log.WithFields(logger.Fields{"symbol": symbol, "attempt": attempt}).WithError(err).Warn("chart request failed")

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("currency: %s failed after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

// doRequest reports whether a failed request is worth retrying.
func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNoData
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("currency: request failed (%s)", resp.Status)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, false, fmt.Errorf("currency: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, false, nil
}

func parseChart(body []byte) ([]Quote, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("currency: decode chart: %w", err)
	}
	if e := payload.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("currency: %s: %s", e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	res := payload.Chart.Result[0]
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	q := res.Indicators.Quote[0]
	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}
	offset := time.Duration(res.Meta.GMTOffset) * time.Second

	quotes := make([]Quote, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closeValue := at(q.Close, i)
		if closeValue == nil {
			continue
		}
		quote := Quote{
			Date:  time.Unix(ts, 0).UTC().Add(offset).Format("2006-01-02"),
			Open:  value(at(q.Open, i)),
			High:  value(at(q.High, i)),
			Low:   value(at(q.Low, i)),
			Close: *closeValue,
		}
		quote.AdjClose = quote.Close
		if a := at(adj, i); a != nil {
			quote.AdjClose = *a
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			quote.Volume = *q.Volume[i]
		}
		quotes = append(quotes, quote)
	}
	if len(quotes) == 0 {
		return nil, ErrNoData
	}
	return quotes, nil
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
