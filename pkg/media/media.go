// Package media fetches the disk and cassette images a server offers.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Kind selects a media list.
type Kind string

const (
	Disks     Kind = "disks"
	Cassettes Kind = "cassettes"
)

// Path returns the server path serving the list.
func (k Kind) Path() string {
	return "/" + string(k) + ".json"
}

// maxListSize bounds a list response body.
const maxListSize = 1 << 20

// Client reads media lists from the emulator's HTTP server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at base, e.g.
// "http://localhost:8080". A nil httpClient uses a client with a 10s
// timeout.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: httpClient,
	}
}

// List returns the file names of one kind, sorted.
func (c *Client) List(ctx context.Context, kind Kind) ([]string, error) {
	url := c.base + kind.Path()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: server returned %s", kind, resp.Status)
	}

	var names []string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListSize)).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", kind, err)
	}
	sort.Strings(names)
	return names, nil
}

// Disks returns the disk images on the server.
func (c *Client) Disks(ctx context.Context) ([]string, error) {
	return c.List(ctx, Disks)
}

// Cassettes returns the cassette images on the server.
func (c *Client) Cassettes(ctx context.Context) ([]string, error) {
	return c.List(ctx, Cassettes)
}
