package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whalewatch/internal/alert"
)

const maxDerivedBodyBytes = 4 << 20

// HTTPSourceOptions parameterise the remote derived-activity source.
type HTTPSourceOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// HTTPSource fetches recently ingested raw messages from another instance's
// GET /api/messages/recent endpoint.
type HTTPSource struct {
	opts   HTTPSourceOptions
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPSource constructs a remote derived-activity source.
func NewHTTPSource(opts HTTPSourceOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "derived_http_source").Logger(),
	}
}

func (s *HTTPSource) Name() string { return "derived" }

// Fetch requests up to q.Limit messages and converts them to records.
func (s *HTTPSource) Fetch(ctx context.Context, q Query) ([]alert.RawRecord, error) {
	endpoint, err := url.Parse(strings.TrimSpace(s.opts.URL))
	if err != nil || endpoint.Scheme == "" {
		return nil, fmt.Errorf("invalid derived endpoint %q", s.opts.URL)
	}
	params := endpoint.Query()
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.ChannelID != "" {
		params.Set("channelId", q.ChannelID)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "whalewatch/1.0")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxDerivedBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var body recentMessagesResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode derived response: %w", err)
	}
	s.logger.Debug().Int("messages", len(body.Messages)).Msg("derived endpoint responded")
	return recordsFromMessages(body.Messages), nil
}

type recentMessagesResponse struct {
	Messages []alert.RawAlertMessage `json:"messages"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("derived endpoint error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("derived endpoint error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("derived endpoint error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("derived endpoint error (%d)", status)
}

var _ Source = (*HTTPSource)(nil)
