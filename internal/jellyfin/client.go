// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package jellyfin is the HTTP adapter for the hosting media server. It
// covers exactly the three consumed interfaces of the pipeline: library-root
// discovery, the fire-and-forget rescan trigger, and trailer-metadata lookup
// by filesystem path.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fl4pj4ck/jellytrailers/internal/buildinfo"
)

const requestTimeout = 30 * time.Second

// VirtualFolder is one configured library as reported by the server.
type VirtualFolder struct {
	Name           string   `json:"Name"`
	CollectionType string   `json:"CollectionType"`
	Locations      []string `json:"Locations"`
}

// Client talks to the media server's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a client for the given server URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		log:     log.With().Str("component", "jellyfin").Logger(),
	}
}

// GetVirtualFolders returns the configured libraries with their content-type
// labels and filesystem locations.
func (c *Client) GetVirtualFolders(ctx context.Context) ([]VirtualFolder, error) {
	var folders []VirtualFolder
	err := retry.Do(
		func() error { return c.getJSON(ctx, "/Library/VirtualFolders", nil, &folders) },
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("get virtual folders: %w", err)
	}
	return folders, nil
}

// RequestRescan asks the server to re-index its catalog. Failures are
// logged by the caller and never fatal; no retry beyond the transport's.
func (c *Client) RequestRescan(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/Library/Refresh", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request rescan: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("request rescan: unexpected status %s", resp.Status)
	}
	c.log.Debug().Msg("Library rescan requested")
	return nil
}

// item is the subset of the server's item model the fallback path needs.
type item struct {
	ID             string `json:"Id"`
	Type           string `json:"Type"`
	ParentID       string `json:"ParentId"`
	SeriesID       string `json:"SeriesId"`
	RemoteTrailers []struct {
		URL string `json:"Url"`
	} `json:"RemoteTrailers"`
}

type itemsResponse struct {
	Items []item `json:"Items"`
}

// TrailerURLs resolves the catalog item for a folder path and returns its
// remote trailer URLs. Trailer metadata for a TV season lives on the show,
// so a season resolution walks up one level. Any resolution failure yields
// an empty list, never an error the run has to care about.
func (c *Client) TrailerURLs(ctx context.Context, path string) ([]string, error) {
	it, err := c.findByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, nil
	}

	if strings.EqualFold(it.Type, "Season") {
		parentID := it.SeriesID
		if parentID == "" {
			parentID = it.ParentID
		}
		if parentID == "" {
			return nil, nil
		}
		it, err = c.findByID(ctx, parentID)
		if err != nil || it == nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(it.RemoteTrailers))
	for _, t := range it.RemoteTrailers {
		if u := strings.TrimSpace(t.URL); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

func (c *Client) findByPath(ctx context.Context, path string) (*item, error) {
	query := url.Values{
		"path":      {path},
		"recursive": {"true"},
		"fields":    {"Path,RemoteTrailers"},
	}

	var resp itemsResponse
	if err := c.getJSON(ctx, "/Items", query, &resp); err != nil {
		return nil, fmt.Errorf("find item by path: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return &resp.Items[0], nil
}

func (c *Client) findByID(ctx context.Context, id string) (*item, error) {
	query := url.Values{
		"ids":    {id},
		"fields": {"RemoteTrailers"},
	}

	var resp itemsResponse
	if err := c.getJSON(ctx, "/Items", query, &resp); err != nil {
		return nil, fmt.Errorf("find item by id: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return &resp.Items[0], nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf(`MediaBrowser Token=%q`, c.apiKey))
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
