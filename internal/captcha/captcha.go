// Package captcha is a client for createTask/getTaskResult style captcha
// solving services (2captcha API v2 and compatibles).
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/edgard/checkgrabber/internal/ratelimit"
)

// DefaultBaseURL is the 2captcha API v2 endpoint.
const DefaultBaseURL = "https://api.2captcha.com"

var (
	// ErrDisabled is returned when the solver is switched off or has no API key.
	ErrDisabled = errors.New("captcha solver disabled")
	// ErrUnsolved is returned when polling ends without a solution.
	ErrUnsolved = errors.New("captcha not solved")
	// ErrCircuitOpen is returned while the service is considered down.
	ErrCircuitOpen = gobreaker.ErrOpenState
)

// tripAfter consecutive transport or HTTP failures open the breaker.
const tripAfter = 5

// Config configures the client.
type Config struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
}

// Client submits solve jobs and polls for their result.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	cb     *gobreaker.CircuitBreaker
}

// New creates a Client. A nil httpClient uses a client with a 30s timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 40
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	log := logger.With("component", "captcha")
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log,
		sleep:  ratelimit.Sleep,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "captcha",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfter
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Enabled reports whether solve calls will reach the service.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.APIKey != ""
}

type apiResponse struct {
	ErrorID          int             `json:"errorId"`
	ErrorCode        string          `json:"errorCode"`
	ErrorDescription string          `json:"errorDescription"`
	TaskID           json.Number     `json:"taskId"`
	Status           json.RawMessage `json:"status"`
	Balance          float64         `json:"balance"`
	Solution         struct {
		Text               string `json:"text"`
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

func (r *apiResponse) err() error {
	if r.ErrorID == 0 {
		return nil
	}
	return fmt.Errorf("captcha service error %d %s: %s", r.ErrorID, r.ErrorCode, r.ErrorDescription)
}

// ready accepts both the documented "ready" and the numeric 1 some compatibles return.
func (r *apiResponse) ready() bool {
	s := strings.Trim(string(r.Status), `"`)
	return s == "ready" || s == "1"
}

// SolveImage solves an image captcha given as a URL or base64 body.
func (c *Client) SolveImage(ctx context.Context, body string) (string, error) {
	if body == "" {
		return "", errors.New("captcha image body is empty")
	}
	res, err := c.solve(ctx, map[string]any{"type": "ImageToTextTask", "body": body})
	if err != nil {
		return "", err
	}
	return res.Solution.Text, nil
}

// SolveRecaptchaV2 solves an interactive reCAPTCHA v2 challenge and returns the token.
func (c *Client) SolveRecaptchaV2(ctx context.Context, siteKey, pageURL string) (string, error) {
	res, err := c.solve(ctx, map[string]any{
		"type":       "RecaptchaV2TaskProxyless",
		"websiteURL": pageURL,
		"websiteKey": siteKey,
	})
	if err != nil {
		return "", err
	}
	return res.Solution.GRecaptchaResponse, nil
}

// Balance returns the account balance; it doubles as a credentials check.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	if !c.Enabled() {
		return 0, ErrDisabled
	}
	var res apiResponse
	if err := c.post(ctx, "/getBalance", map[string]any{"clientKey": c.cfg.APIKey}, &res); err != nil {
		return 0, err
	}
	if err := res.err(); err != nil {
		return 0, err
	}
	return res.Balance, nil
}

func (c *Client) solve(ctx context.Context, task map[string]any) (*apiResponse, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	var created apiResponse
	if err := c.post(ctx, "/createTask", map[string]any{"clientKey": c.cfg.APIKey, "task": task}, &created); err != nil {
		return nil, err
	}
	if err := created.err(); err != nil {
		return nil, err
	}
	if created.TaskID == "" {
		return nil, errors.New("captcha service returned no task id")
	}
	taskID, err := created.TaskID.Int64()
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", created.TaskID, err)
	}

	log := c.logger.With("task_id", taskID, "type", task["type"])
	log.DebugContext(ctx, "Captcha task created")

	for poll := 1; poll <= c.cfg.MaxPolls; poll++ {
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, err
		}

		var res apiResponse
		if err := c.post(ctx, "/getTaskResult", map[string]any{"clientKey": c.cfg.APIKey, "taskId": taskID}, &res); err != nil {
			return nil, err
		}
		if err := res.err(); err != nil {
			return nil, err
		}
		if res.ready() {
			log.InfoContext(ctx, "Captcha solved", "polls", poll)
			return &res, nil
		}
	}

	log.WarnContext(ctx, "Captcha polling exhausted", "polls", c.cfg.MaxPolls)
	return nil, ErrUnsolved
}

// post sends one request through the circuit breaker.
func (c *Client) post(ctx context.Context, path string, payload any, out *apiResponse) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, payload, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, path string, payload any, out *apiResponse) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha service %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}
