package qwell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/yanqian/biofeedback/internal/domain/biofeedback"
	apperrors "github.com/yanqian/biofeedback/pkg/errors"
	"github.com/yanqian/biofeedback/pkg/util"
)

const (
	defaultBaseURL = "https://devapi.qwell.app/api/"
	defaultTimeout = 10 * time.Second

	analyticsPath = "fetch-data/"
	historyPath   = "fetch-data-bioFeedbackScore/"
	updatePath    = "update-bio-feedback-score/"

	updateDateLayout = "2006-01-02"
)

// DeviceIdentity supplies the identifier every request is scoped to.
type DeviceIdentity interface {
	DeviceID(ctx context.Context) (string, error)
}

// Config configures the remote API client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Token    string
	Location *time.Location
}

// Client talks to the emotion analytics and biofeedback score endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	device     DeviceIdentity
	location   *time.Location
	now        func() time.Time
}

// NewClient builds an API client. A non-empty token is sent as a bearer
// credential on every request.
func NewClient(cfg Config, device DeviceIdentity) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	httpClient := &http.Client{Timeout: timeout}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		httpClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		}
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		device:     device,
		location:   loc,
		now:        util.NowUTC,
	}
}

// FetchAnalytics returns the count most recent emotion-detection records.
func (c *Client) FetchAnalytics(ctx context.Context, count int) ([]biofeedback.AnalyticsRecord, error) {
	deviceID, err := c.device.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	var raw analyticsResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+analyticsPath, analyticsRequest{NumberOfRecords: count, DeviceID: deviceID}, &raw); err != nil {
		return nil, fmt.Errorf("fetch analytics: %w", err)
	}

	records := make([]biofeedback.AnalyticsRecord, 0, len(raw.Analytics))
	for _, item := range raw.Analytics {
		var score *float64
		if item.Emotion != nil {
			score = item.Emotion.Score
		}
		records = append(records, biofeedback.AnalyticsRecord{EmotionScore: score})
	}
	return records, nil
}

// FetchScores returns up to count stored scores, most recent first.
func (c *Client) FetchScores(ctx context.Context, count int) ([]biofeedback.HistoricalRecord, error) {
	deviceID, err := c.device.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("number_of_records", strconv.Itoa(count))
	query.Set("device_id", deviceID)

	var raw historyResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+historyPath+"?"+query.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch biofeedback scores: %w", err)
	}

	items := raw.Data
	if len(items) == 0 {
		items = raw.DataCamel
	}
	records := make([]biofeedback.HistoricalRecord, 0, len(items))
	for _, item := range items {
		records = append(records, biofeedback.HistoricalRecord{
			Score:     item.Score,
			Timestamp: parseTimestamp(item.Timestamp, c.location),
		})
	}
	return records, nil
}

// UpdateScore posts score for today's UTC date.
func (c *Client) UpdateScore(ctx context.Context, score float64) (biofeedback.UpdateResult, error) {
	deviceID, err := c.device.DeviceID(ctx)
	if err != nil {
		return biofeedback.UpdateResult{}, err
	}

	body := updateRequest{
		Date:     c.now().UTC().Format(updateDateLayout),
		DeviceID: deviceID,
		Score:    score,
	}
	var raw updateResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+updatePath, body, &raw); err != nil {
		return biofeedback.UpdateResult{}, fmt.Errorf("update biofeedback score: %w", err)
	}
	if raw.Error != "" {
		return biofeedback.UpdateResult{}, apperrors.Wrap(apperrors.CodeUpstream, "update biofeedback score rejected: "+raw.Error, nil)
	}
	return biofeedback.UpdateResult{
		ID:       raw.ID,
		Date:     raw.Date,
		DeviceID: raw.DeviceID,
		Score:    raw.Score,
		Message:  raw.Message,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUpstream, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return apperrors.Wrap(apperrors.CodeUpstream, fmt.Sprintf("request error: status=%d body=%s", resp.StatusCode, string(snippet)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodeUpstream, "decode response", err)
	}
	return nil
}

type analyticsRequest struct {
	NumberOfRecords int    `json:"numberOfRecords"`
	DeviceID        string `json:"deviceID"`
}

type analyticsResponse struct {
	Analytics []analyticsItem `json:"analytics"`
}

type analyticsItem struct {
	Emotion *struct {
		Score *float64 `json:"score"`
	} `json:"emotion"`
}

type historyResponse struct {
	Data      []historyItem `json:"Bio_Feedback_Data"`
	DataCamel []historyItem `json:"bioFeedbackData"`
}

type historyItem struct {
	Score     *float64 `json:"Bio_Feedback_Score"`
	Timestamp string   `json:"Date with Timestamp"`
}

type updateRequest struct {
	Date     string  `json:"date"`
	DeviceID string  `json:"device_id"`
	Score    float64 `json:"bio_feedback_score"`
}

type updateResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	ID       int64    `json:"ID"`
	Date     string   `json:"Date"`
	DeviceID string   `json:"Device ID"`
	Score    *float64 `json:"Bio Feedback Score"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts the layouts the score service has been seen to
// emit. Values without a zone are read in loc. Unparseable values yield the
// zero time.
func parseTimestamp(value string, loc *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts
		}
	}
	return time.Time{}
}
