// Package scoring calls the external image-similarity scorer.
package scoring

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"geo-challenge/internal/model"
)

// ErrUnavailable is returned when the scorer cannot produce a score in time.
var ErrUnavailable = errors.New("similarity scorer unavailable")

// Client is an HTTP client for the similarity scorer. The scorer receives
// the reference photo URL and the candidate image and answers with a score
// in [0, 1].
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new scorer client. timeout bounds every Score call.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type scoreRequest struct {
	Reference   string `json:"reference"`
	Candidate   string `json:"candidate"`
	ContentType string `json:"contentType"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

// Score compares candidate against the reference photo. Every failure,
// including a timeout or a malformed answer, wraps ErrUnavailable.
func (c *Client) Score(ctx context.Context, referenceRef string, candidate model.Photo) (float64, error) {
	if c.endpoint == "" {
		return 0, fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{
		Reference:   referenceRef,
		Candidate:   base64.StdEncoding.EncodeToString(candidate.Data),
		ContentType: candidate.ContentType,
	})
	if err != nil {
		return 0, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Similarity scorer request failed")
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		log.Warn().Int("status", resp.StatusCode).Msg("Similarity scorer returned an error status")
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.Score == nil || *out.Score < 0 || *out.Score > 1 {
		return 0, fmt.Errorf("%w: score missing or out of range", ErrUnavailable)
	}

	log.Debug().Float64("score", *out.Score).Dur("elapsed", time.Since(start)).Msg("Photo scored")
	return *out.Score, nil
}
