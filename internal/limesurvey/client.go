// File path: internal/limesurvey/client.go
package limesurvey

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"teaching-stats/internal/report"
)

// Survey is one entry of the remote survey list.
type Survey struct {
	ID     int    `json:"sid"`
	Title  string `json:"surveyls_title"`
	Active string `json:"active"`
}

// IsActive reports whether the survey is currently collecting responses.
func (s Survey) IsActive() bool { return s.Active == "Y" }

// Client talks to the LimeSurvey RemoteControl JSON-RPC endpoint. Only the read
// side is implemented: listing surveys and exporting their questions and
// responses. Connect acquires a session key; Close releases it.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sessionKey string
	nextID     int
}

// NewClient validates the configuration and constructs a disconnected client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetHTTPClient swaps the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// Connect acquires a RemoteControl session key.
func (c *Client) Connect(ctx context.Context) error {
	var key string
	if err := c.call(ctx, "get_session_key", &key, c.cfg.Username, c.cfg.Password); err != nil {
		return fmt.Errorf("acquire session key: %w", err)
	}
	c.sessionKey = key
	return nil
}

// Close releases the session key, if one is held.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.sessionKey == "" {
		return nil
	}
	var discard json.RawMessage
	err := c.call(ctx, "release_session_key", &discard, c.sessionKey)
	c.sessionKey = ""
	if err != nil {
		return fmt.Errorf("release session key: %w", err)
	}
	return nil
}

// ListSurveys returns every survey visible to the configured account.
func (c *Client) ListSurveys(ctx context.Context) ([]Survey, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}
	var surveys []Survey
	if err := c.call(ctx, "list_surveys", &surveys, c.sessionKey, c.cfg.Username); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return surveys, nil
}

// SurveyQuestions exports the question metadata a normalization run needs to
// resolve statements.
func (c *Client) SurveyQuestions(ctx context.Context, surveyID int) ([]report.Question, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}
	var questions []report.Question
	if err := c.call(ctx, "list_questions", &questions, c.sessionKey, surveyID); err != nil {
		return nil, fmt.Errorf("list questions for survey %d: %w", surveyID, err)
	}
	return questions, nil
}

// SurveyResponses exports the raw response payload of one survey. The API
// returns the JSON document base64-encoded.
func (c *Client) SurveyResponses(ctx context.Context, surveyID int) (report.ResponsePayload, error) {
	if err := c.connected(); err != nil {
		return report.ResponsePayload{}, err
	}
	var encoded string
	if err := c.call(ctx, "export_responses", &encoded, c.sessionKey, surveyID, "json"); err != nil {
		return report.ResponsePayload{}, fmt.Errorf("export responses for survey %d: %w", surveyID, err)
	}
	document, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return report.ResponsePayload{}, fmt.Errorf("decode responses for survey %d: %w", surveyID, err)
	}
	var payload report.ResponsePayload
	if err := json.Unmarshal(document, &payload); err != nil {
		return report.ResponsePayload{}, fmt.Errorf("parse responses for survey %d: %w", surveyID, err)
	}
	return payload, nil
}

func (c *Client) connected() error {
	if c == nil || c.sessionKey == "" {
		return errors.New("limesurvey client not connected")
	}
	return nil
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
	ID     int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     int             `json:"id"`
}

// call performs one JSON-RPC round trip and decodes the result into target. The
// envelope is always marshaled from structs; parameter values are never
// interpolated into the request text.
func (c *Client) call(ctx context.Context, method string, target interface{}, params ...interface{}) error {
	c.nextID++
	body, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: c.nextID})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s call: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s call: unexpected status %s", method, resp.Status)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		return fmt.Errorf("%s call: api error: %s", method, envelope.Error)
	}
	if status := apiStatus(envelope.Result); status != "" {
		return fmt.Errorf("%s call: api status: %s", method, status)
	}
	if err := json.Unmarshal(envelope.Result, target); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// apiStatus detects the RemoteControl convention of reporting failures as a
// bare {"status": "..."} result object.
func apiStatus(result json.RawMessage) string {
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(result, &probe); err != nil {
		return ""
	}
	return probe.Status
}
