// Package gradesink delivers computed grades to an external grading
// consumer. The workflow treats delivery as fire-and-forget: a missing or
// failing sink means the attempt is ungraded, never an error for the student.
package gradesink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Sink receives one grade per finished attempt. customKey is the
// assignment:question pair the grade belongs to; grade is in [0,1].
type Sink interface {
	Submit(ctx context.Context, userToken, customKey string, grade float64) error
}

// Noop is the "ungraded" sink.
type Noop struct{}

func (Noop) Submit(context.Context, string, string, float64) error { return nil }

// Config for the AGS-style score endpoint.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// LineItemBase is the URL prefix of the platform's line items; the
	// score for custom key K is posted to {LineItemBase}/{K}/scores.
	LineItemBase string
	Timeout      time.Duration
}

// AGSSink posts scores to an LTI AGS line item, authenticating with OAuth2
// client credentials.
type AGSSink struct {
	http *http.Client
	base string
	now  func() time.Time
}

func NewAGS(cfg Config) *AGSSink {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	h := cc.Client(context.Background())
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &AGSSink{http: h, base: cfg.LineItemBase, now: time.Now}
}

func (s *AGSSink) Submit(ctx context.Context, userToken, customKey string, grade float64) error {
	body, _ := json.Marshal(map[string]any{
		"userId":           userToken,
		"scoreGiven":       grade,
		"scoreMaximum":     1.0,
		"activityProgress": "Completed",
		"gradingProgress":  "FullyGraded",
		"timestamp":        s.now().Format(time.RFC3339),
	})
	req, err := http.NewRequestWithContext(ctx, "POST", s.scoreURL(customKey), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.ims.lis.v1.score+json")
	res, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("post score: %s", res.Status)
	}
	return nil
}

func (s *AGSSink) scoreURL(customKey string) string {
	base := s.base
	if base != "" && base[len(base)-1] != '/' {
		base += "/"
	}
	return base + url.PathEscape(customKey) + "/scores"
}
