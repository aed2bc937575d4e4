// Package verify is the transport client for the remote verification
// service. It performs the fixed REST operations and normalizes every
// failure into the Failure taxonomy; it keeps no state between calls.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the remote verification service.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a client for the service at baseURL (e.g.
// "http://localhost:5000/api"). Every request carries the given deadline.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// UploadCSV submits transaction history as a multipart form.
func (c *Client) UploadCSV(ctx context.Context, userID, filename string, csv []byte) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user_id", userID); err != nil {
		return nil, fmt.Errorf("write user_id field: %w", err)
	}
	fw, err := mw.CreateFormFile("csv_file", filename)
	if err != nil {
		return nil, fmt.Errorf("create csv_file part: %w", err)
	}
	if _, err := fw.Write(csv); err != nil {
		return nil, fmt.Errorf("write csv_file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-csv", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Failure{Kind: FailRejected}
	}
	return &out, nil
}

// StartAuth begins a question session for previously uploaded data.
func (c *Client) StartAuth(ctx context.Context, dataID, userID string) (*StartAuthResponse, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/start-auth", map[string]string{
		"data_id": dataID,
		"user_id": userID,
	})
	if err != nil {
		return nil, err
	}
	var out StartAuthResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Failure{Kind: FailRejected}
	}
	return &out, nil
}

// NextQuestion fetches the next pending question for the session.
func (c *Client) NextQuestion(ctx context.Context, sessionID string) (*QuestionsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/questions?session_id="+url.QueryEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	var out QuestionsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Failure{Kind: FailRejected}
	}
	return &out, nil
}

// VerifyAnswer submits an answer for grading. The answer is trimmed before
// it goes on the wire; questionID is the client-synthesized ordinal token.
func (c *Client) VerifyAnswer(ctx context.Context, questionID, sessionID, answer string) (*VerifyAnswerResponse, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost,
		"/questions/"+url.PathEscape(questionID)+"/verify", map[string]string{
			"session_id": sessionID,
			"answer":     strings.TrimSpace(answer),
		})
	if err != nil {
		return nil, err
	}
	var out VerifyAnswerResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Failure{Kind: FailRejected}
	}
	return &out, nil
}

// SessionStatus reports the service's view of a session. Not used by the
// core flow; the debug probe surfaces it.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (*SessionStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/session-status/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	var out SessionStatusResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Failure{Kind: FailRejected}
	}
	return &out, nil
}

// Ping checks that the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends the request and decodes a 2xx body into out (when non-nil).
// Everything that goes wrong comes back as a *Failure.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env errorEnvelope
		_ = json.Unmarshal(body, &env)
		return classifyStatus(resp.StatusCode, env.text())
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Failure{Kind: FailRejected, Message: "invalid response payload"}
	}
	return nil
}
