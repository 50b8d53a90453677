package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nflpicks/tracker/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreboardJSON = `{
  "season": {"year": 2025, "type": 2},
  "week": {"number": 1},
  "events": [{
    "id": "401772510",
    "date": "2025-09-07T17:00Z",
    "name": "Buffalo Bills at Miami Dolphins",
    "status": {"type": {"name": "STATUS_FINAL", "state": "post", "completed": true}},
    "competitions": [{
      "id": "401772510",
      "competitors": [
        {"homeAway": "home", "score": "24", "team": {"abbreviation": "MIA"}},
        {"homeAway": "away", "score": "31", "winner": true, "team": {"abbreviation": "BUF"}}
      ]
    }]
  }]
}`

func TestESPNClient_FetchScoreboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scoreboard", r.URL.Path)
		assert.Equal(t, "2025", r.URL.Query().Get("dates"))
		assert.Equal(t, "2", r.URL.Query().Get("seasontype"))
		assert.Equal(t, "1", r.URL.Query().Get("week"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(scoreboardJSON))
	}))
	defer server.Close()

	c := NewESPNClient(server.URL, 5*time.Second)
	board, err := c.FetchScoreboard(context.Background(), 2025, SeasonTypeRegular, 1)
	require.NoError(t, err)

	require.Len(t, board.Events, 1)
	comps := board.Events[0].Competitions[0].Competitors
	require.Len(t, comps, 2)
	score, ok := comps[1].ScoreValue()
	assert.True(t, ok)
	assert.Equal(t, 31, score)
	assert.True(t, board.Events[0].Status.Type.Completed)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL, time.Second, WithRetry(3, time.Millisecond))
	resp, err := c.Do(context.Background(), Request{Path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(server.URL, time.Second, WithRetry(3, time.Millisecond))
	resp, err := c.Do(context.Background(), Request{Path: "user"})
	require.Error(t, err)
	require.NotNil(t, resp)

	nErr, ok := apperr.AsNetworkError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, nErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesOnlyIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL, time.Second, WithRetry(2, time.Millisecond))

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "gists", Body: []byte(`{}`)})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	_, err = c.Do(context.Background(), Request{Method: http.MethodPatch, Path: "gists/1", Body: []byte(`{}`)})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	_, err = c.Do(context.Background(), Request{Method: http.MethodPatch, Path: "gists/1", Body: []byte(`{}`), Idempotent: true})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_TimeoutIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := New(server.URL, 5*time.Second, WithRetry(0, time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, Request{Path: "slow"})
	require.Error(t, err)
	assert.True(t, apperr.IsTimeout(err))
}

func TestClient_HeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(server.URL, time.Second, WithHeader("Authorization", "token abc"))
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPatch, Path: "gists/1", Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
