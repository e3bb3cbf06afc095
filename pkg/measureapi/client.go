// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

// Package measureapi is a thin client for the DBTM web API, the
// persistence side of the measurement station. The API itself (Express +
// MySQL) is an external collaborator; this package only speaks its HTTP
// surface: login, measurement submit, and history fetch.
package measureapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aryaw001/dbtm-station/pkg/bodyproto"
)

// ErrInvalidCredentials is returned by Login when the API rejects the
// email/password pair.
var ErrInvalidCredentials = errors.New("measureapi: invalid credentials")

const requestTimeout = 10 * time.Second

// User is the account a measurement history belongs to.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Client talks to one DBTM API base URL.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// New creates a client for the API at base, e.g. "http://192.168.0.140:5000".
func New(base string, log zerolog.Logger) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: requestTimeout},
		log:  log,
	}
}

// Login exchanges credentials for the account record.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := c.post(ctx, "/api/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusUnauthorized)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, ErrInvalidCredentials
	}

	var resp struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("measureapi: decode login response: %w", err)
	}
	return &resp.User, nil
}

// submitPayload is the measurement record keyed by a user identifier, the
// shape POST /api/measurements expects.
type submitPayload struct {
	UserID int `json:"user_id"`
	bodyproto.Measurement
}

// SubmitMeasurement persists one finalized record for the given user. The
// call carries no data back; the caller treats it as fire-and-forget.
func (c *Client) SubmitMeasurement(ctx context.Context, userID int, rec bodyproto.Measurement) error {
	_, err := c.post(ctx, "/api/measurements", submitPayload{UserID: userID, Measurement: rec}, 0)
	if err != nil {
		return err
	}
	c.log.Info().Str("record", rec.ID).Int("user", userID).Msg("measurement persisted")
	return nil
}

// History fetches the persisted measurements for a user, newest first as
// the API returns them.
func (c *Client) History(ctx context.Context, userID int) ([]bodyproto.Measurement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/measurements/%d", c.base, userID), nil)
	if err != nil {
		return nil, fmt.Errorf("measureapi: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("measureapi: history fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("measureapi: history fetch: HTTP %d", resp.StatusCode)
	}

	var recs []bodyproto.Measurement
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("measureapi: decode history: %w", err)
	}
	return recs, nil
}

// post sends a JSON body and returns the response body on success. When
// the status equals softFail the response is swallowed and (nil, nil) is
// returned so the caller can map it to a domain error.
func (c *Client) post(ctx context.Context, path string, payload any, softFail int) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("measureapi: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("measureapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("measureapi: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("measureapi: %s: read response: %w", path, err)
	}

	if softFail != 0 && resp.StatusCode == softFail {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("measureapi: %s: HTTP %d", path, resp.StatusCode)
	}
	return body, nil
}
