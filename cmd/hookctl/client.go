package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hookrelay/internal/buildinfo"
)

type apiClient struct {
	base string
	org  string
	http *http.Client
}

func newAPIClient(base, org string) *apiClient {
	return &apiClient{base: base, org: org, http: &http.Client{Timeout: 30 * time.Second}}
}

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// do sends body as JSON and decodes a JSON response into out when non-nil.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-Id", c.org)
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var p problem
		if json.Unmarshal(data, &p) == nil && p.Title != "" {
			if p.Detail != "" {
				return fmt.Errorf("%s (%d): %s", p.Title, resp.StatusCode, p.Detail)
			}
			return fmt.Errorf("%s (%d)", p.Title, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
