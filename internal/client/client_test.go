package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codedrop/internal/api"
	"codedrop/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()

	r.Get("/api/anonymous-code", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"code": "12345678"})
	})

	r.Post("/api/anonymous-upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "file body", string(data))
		assert.Equal(t, "hi", r.FormValue("text"))
		api.WriteJSON(w, http.StatusOK, map[string]interface{}{"code": r.FormValue("code"), "success": true})
	})

	r.Get("/api/anonymous-download", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") != "12345678" {
			api.WriteError(w, http.StatusNotFound, "Invalid code or file not found")
			return
		}
		text := "hello"
		api.WriteJSON(w, http.StatusOK, models.Upload{Type: models.UploadTypeText, TextContent: &text})
	})

	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "Secret1!x" {
			api.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		api.WriteJSON(w, http.StatusOK, Session{Token: "tok", User: &models.User{Username: body["username"]}})
	})

	r.Get("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		api.WriteJSON(w, http.StatusOK, Page{Page: 0, PageSize: 10})
	})

	r.Delete("/api/uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/f/*", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("object:" + chi.URLParam(r, "*")))
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_AnonymousFlow(t *testing.T) {
	ts := newTestServer(t)
	c := New(ts.URL + "/")
	ctx := context.Background()

	code, err := c.NewCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12345678", code)

	stored, err := c.SendAnonymous(ctx, code, "hi", &File{Name: "notes.txt", Reader: strings.NewReader("file body")})
	require.NoError(t, err)
	assert.Equal(t, code, stored)

	upload, err := c.Resolve(ctx, code)
	require.NoError(t, err)
	require.NotNil(t, upload.TextContent)
	assert.Equal(t, "hello", *upload.TextContent)

	_, err = c.Resolve(ctx, "00000000")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "Invalid code or file not found")
}

func TestClient_LoginSetsToken(t *testing.T) {
	ts := newTestServer(t)
	c := New(ts.URL)
	ctx := context.Background()

	_, err := c.ListUploads(ctx, 0)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	_, err = c.Login(ctx, "alice", "wrong")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Empty(t, c.Token())

	session, err := c.Login(ctx, "alice", "Secret1!x")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.User.Username)
	assert.Equal(t, "tok", c.Token())

	page, err := c.ListUploads(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, page.PageSize)

	assert.NoError(t, c.DeleteUpload(ctx, uuid.New()))
}

func TestClient_Fetch(t *testing.T) {
	ts := newTestServer(t)
	c := New(ts.URL)

	var sb strings.Builder
	n, err := c.Fetch(context.Background(), ts.URL+"/f/anonymous/12345678.txt", &sb)
	require.NoError(t, err)
	assert.Equal(t, "object:anonymous/12345678.txt", sb.String())
	assert.Equal(t, int64(sb.Len()), n)

	_, err = c.Fetch(context.Background(), ts.URL+"/missing", &sb)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}
