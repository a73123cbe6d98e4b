// Package client talks to a running knowling server over its /api/v1 HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/internal/notebook"
)

// Client mirrors the Notebook operations against a server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert creates a note when id is empty, otherwise replaces its text.
func (c *Client) Upsert(ctx context.Context, id, text string) (*models.Note, error) {
	method, path, want := http.MethodPost, "/notes", http.StatusCreated
	if id != "" {
		method, path, want = http.MethodPut, "/notes/"+url.PathEscape(id), http.StatusOK
	}
	var note models.Note
	if err := c.do(ctx, method, path, map[string]string{"text": text}, &note, want); err != nil {
		return nil, err
	}
	return &note, nil
}

// GetNotes lists every note, oldest first.
func (c *Client) GetNotes(ctx context.Context) ([]*models.Note, error) {
	var out struct {
		Notes []*models.Note `json:"notes"`
	}
	if err := c.do(ctx, http.MethodGet, "/notes", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// GetNoteByID returns the note, or nil when the server does not know it.
func (c *Client) GetNoteByID(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	err := c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil, &note, http.StatusOK)
	if errors.Is(err, notebook.ErrNoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote removes the note. Deleting a missing note is not an error.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil, http.StatusOK)
}

// AddCategoryToNote tags the note with label.
func (c *Client) AddCategoryToNote(ctx context.Context, noteID, label string) (*models.Note, error) {
	var note models.Note
	path := "/notes/" + url.PathEscape(noteID) + "/categories"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"label": label}, &note, http.StatusOK); err != nil {
		return nil, err
	}
	return &note, nil
}

// RemoveCategoryFromNote detaches the category from the note.
func (c *Client) RemoveCategoryFromNote(ctx context.Context, noteID, categoryID string) (*models.Note, error) {
	var note models.Note
	path := "/notes/" + url.PathEscape(noteID) + "/categories/" + url.PathEscape(categoryID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &note, http.StatusOK); err != nil {
		return nil, err
	}
	return &note, nil
}

// GetSimilarNotesByID returns the notes similar to id. Options left unset use the server defaults.
func (c *Client) GetSimilarNotesByID(ctx context.Context, id string, opts ...notebook.SimilarOption) ([]models.SimilarNote, error) {
	q := url.Values{}
	limit, threshold := notebook.SimilarParams(opts...)
	if limit != nil {
		q.Set("limit", strconv.Itoa(*limit))
	}
	if threshold != nil {
		q.Set("threshold", strconv.FormatFloat(float64(*threshold), 'g', -1, 32))
	}
	path := "/notes/" + url.PathEscape(id) + "/similar"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Results []models.SimilarNote `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ImportNotes asks the server to import dir. Relative paths are resolved here, not on the server.
func (c *Client) ImportNotes(ctx context.Context, dir string) (int, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	var out struct {
		Imported int `json:"imported"`
	}
	if err := c.do(ctx, http.MethodPost, "/import", map[string]string{"path": abs}, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Imported, nil
}

// ExportNotes asks the server to export into a new directory under dir.
func (c *Client) ExportNotes(ctx context.Context, dir string) (int, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, "", err
	}
	var out struct {
		Exported  int    `json:"exported"`
		Directory string `json:"directory"`
	}
	if err := c.do(ctx, http.MethodPost, "/export", map[string]string{"path": abs}, &out, http.StatusOK); err != nil {
		return 0, "", err
	}
	return out.Exported, out.Directory, nil
}

// Reset deletes every note and embedding on the server.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset", nil, nil, http.StatusOK)
}

// Status returns the server's store counts.
func (c *Client) Status(ctx context.Context) (*models.Status, error) {
	var status models.Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}

// do sends body as JSON and decodes the response into out. A 404 maps to
// notebook.ErrNoteNotFound; any other unexpected status carries the server's error message.
func (c *Client) do(ctx context.Context, method, path string, body, out any, want int) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", notebook.ErrNoteNotFound, msg)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
