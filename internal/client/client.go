// Package client is a typed HTTP client for the codedrop API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"codedrop/internal/api"
	"codedrop/internal/models"
)

// APIError is a non-2xx response carrying the server's message
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// File is a local object to attach to an upload
type File struct {
	Name   string
	Reader io.Reader
}

// Page is one page of the signed-in user's uploads
type Page struct {
	Uploads  []*models.Upload `json:"uploads"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}

// Session is returned by register and login
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithToken authenticates every request with a bearer token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use, empty when signed out
func (c *Client) Token() string {
	return c.token
}

func (c *Client) NewCode(ctx context.Context) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/anonymous-code", nil, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// SendAnonymous uploads a file and/or text under code and returns the code
// the server stored it under
func (c *Client) SendAnonymous(ctx context.Context, code, text string, file *File) (string, error) {
	var resp struct {
		Code    string `json:"code"`
		Success bool   `json:"success"`
	}
	fields := map[string]string{"code": code, "text": text}
	if err := c.doMultipart(ctx, "/api/anonymous-upload", fields, file, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// Resolve looks up the newest unexpired record for code
func (c *Client) Resolve(ctx context.Context, code string) (*models.Upload, error) {
	var upload models.Upload
	path := "/api/anonymous-download?" + url.Values{"code": {code}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (c *Client) Register(ctx context.Context, email, username, password string) (*Session, error) {
	body := map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}
	return c.startSession(ctx, "/api/auth/register", body)
}

func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	return c.startSession(ctx, "/api/auth/login", body)
}

func (c *Client) startSession(ctx context.Context, path string, body interface{}) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, path, body, &session); err != nil {
		return nil, err
	}
	c.token = session.Token
	return &session, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.token = ""
	return err
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upload stores a file and/or text for the signed-in user
func (c *Client) Upload(ctx context.Context, text string, file *File) (*models.Upload, error) {
	var upload models.Upload
	if err := c.doMultipart(ctx, "/api/uploads", map[string]string{"text": text}, file, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (c *Client) ListUploads(ctx context.Context, page int) (*Page, error) {
	var result Page
	if err := c.doJSON(ctx, http.MethodGet, "/api/uploads?page="+strconv.Itoa(page), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/uploads/"+id.String(), nil, nil)
}

func (c *Client) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Fetch copies the object behind a public URL into w
func (c *Client) Fetch(ctx context.Context, objectURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, objectURL, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &APIError{StatusCode: resp.StatusCode, Message: "object not available"}
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// doMultipart streams the form through a pipe so large files are never
// buffered in memory
func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, file *File, out interface{}) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, fields, file))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, path, pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	err = c.do(req, out)
	// Unblock the writer if the server answered before reading the body
	_ = pr.CloseWithError(io.ErrClosedPipe)
	return err
}

func writeForm(mw *multipart.Writer, fields map[string]string, file *File) error {
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return err
		}
	}
	return mw.Close()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
