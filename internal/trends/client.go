// Package trends downloads daily Google Trends interest for keyword and
// region pairs.
package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

// ErrNoData is returned when Google has no interest series for a request.
var ErrNoData = errors.New("trends: no data returned")

const timeseriesWidget = "TIMESERIES"

// Point is the interest index of one day.
type Point struct {
	Date  time.Time
	Value int
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type exploreResponse struct {
	Widgets []widget `json:"widgets"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time  string `json:"time"`
			Value []int  `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}

// Client talks to the unofficial Trends endpoints the web UI uses. It keeps
// the session cookie Google hands out on the first page load.
type Client struct {
	baseURL  string
	language string
	tz       int
	client   *http.Client
	primed   bool
	log      *logger.Entry
}

func NewClient(cfg config.TrendsConfig) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		tz:       cfg.TZOffset,
		client:   &http.Client{Timeout: timeout, Jar: jar},
		log:      logger.GetLogger().WithComponent("trends"),
	}, nil
}

// Interest returns the daily interest of keyword in geo over timeframe,
// written as "YYYY-MM-DD YYYY-MM-DD".
func (c *Client) Interest(ctx context.Context, keyword, geo, timeframe string) ([]Point, error) {
	c.prime(ctx, geo)

	req, err := json.Marshal(exploreRequest{
		ComparisonItem: []comparisonItem{{Keyword: keyword, Geo: geo, Time: timeframe}},
	})
	if err != nil {
		return nil, err
	}
	params := c.params()
	params.Set("req", string(req))

	var explore exploreResponse
	if err := c.getJSON(ctx, "/trends/api/explore", params, &explore); err != nil {
		return nil, fmt.Errorf("explore %q: %w", keyword, err)
	}

	var ts *widget
	for i := range explore.Widgets {
		if explore.Widgets[i].ID == timeseriesWidget {
			ts = &explore.Widgets[i]
			break
		}
	}
	if ts == nil {
		return nil, ErrNoData
	}

	params = c.params()
	params.Set("req", string(ts.Request))
	params.Set("token", ts.Token)

	var multiline multilineResponse
	if err := c.getJSON(ctx, "/trends/api/widgetdata/multiline", params, &multiline); err != nil {
		return nil, fmt.Errorf("interest over time %q: %w", keyword, err)
	}

	points := make([]Point, 0, len(multiline.Default.TimelineData))
	for _, d := range multiline.Default.TimelineData {
		sec, err := strconv.ParseInt(d.Time, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timeline time %q: %w", d.Time, err)
		}
		p := Point{Date: time.Unix(sec, 0).UTC()}
		if len(d.Value) > 0 {
			p.Value = d.Value[0]
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}

// prime loads the landing page once so the jar holds Google's NID cookie.
// Failures are logged; the API calls report the real error.
func (c *Client) prime(ctx context.Context, geo string) {
	if c.primed {
		return
	}
	c.primed = true
	endpoint := c.baseURL + "/?geo=" + url.QueryEscape(geo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("failed to load trends landing page")
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("hl", c.language)
	params.Set("tz", strconv.Itoa(c.tz))
	return params
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("trends: request failed (%s)", resp.Status)
	}

	// Responses carry an anti-XSSI prefix such as ")]}'," before the JSON.
	start := bytes.IndexByte(body, '{')
	if start < 0 {
		return fmt.Errorf("trends: response has no JSON object")
	}
	if err := json.Unmarshal(body[start:], dest); err != nil {
		return fmt.Errorf("trends: decode response: %w", err)
	}
	return nil
}
