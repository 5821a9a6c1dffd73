package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiPrefix = "/api/automation/v1"

type apiClient struct {
	baseURL string
	tenant  string
	http    *http.Client
}

func newClient() (*apiClient, error) {
	t := resolvedTenant()
	if t == "" {
		return nil, fmt.Errorf("a tenant is required (use --tenant or set AUTOMATION_TENANT)")
	}
	return &apiClient{
		baseURL: serverURL,
		tenant:  t,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// do performs a request with the tenant header set and decodes the JSON
// response into v when v is non-nil.
func (c *apiClient) do(method, path string, body any, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("X-Tenant-Id", c.tenant)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *apiClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *apiClient) postJSON(path string, body any, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

func (c *apiClient) patchJSON(path string, body any, v any) error {
	return c.do(http.MethodPatch, path, body, v)
}

func (c *apiClient) putJSON(path string, body any, v any) error {
	return c.do(http.MethodPut, path, body, v)
}

func (c *apiClient) deleteJSON(path string, v any) error {
	return c.do(http.MethodDelete, path, nil, v)
}
