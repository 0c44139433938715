package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/kcore-analytics/analysis"
	"github.com/teranos/kcore-analytics/dispatcher"
	"github.com/teranos/kcore-analytics/upstream"
)

// fakeAnalyzer returns a canned result (or error) for every query, letting
// server tests exercise the HTTP surface without a real archive/upstream.
type fakeAnalyzer struct {
	result *analysis.Result
	err    error
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, q string, radius int, client *upstream.Client, lang string) (*analysis.Result, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func TestServer_HandleHealthRespondsOnRootOnly(t *testing.T) {
	d := dispatcher.New(t.Context(), &fakeAnalyzer{}, 1, 0, 0, nil, "en", 2, nil)
	defer d.Stop()
	s := New(d)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ONLINE")
}

func TestServer_HandleDebugEchoesRequest(t *testing.T) {
	d := dispatcher.New(t.Context(), &fakeAnalyzer{}, 1, 0, 0, nil, "en", 2, nil)
	defer d.Stop()
	s := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/anything", nil)
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "GET /debug/anything")
}

func TestServer_HandleInfluencersReturnsResolvedResult(t *testing.T) {
	az := &fakeAnalyzer{result: &analysis.Result{
		Query: "clinton OR hillary",
		Influencers: map[string]analysis.Influencer{
			"hillary": {Rank: 1, Influence: 100, Magnification: 1, Connections: 3, Followers: 9000},
		},
	}}
	d := dispatcher.New(t.Context(), az, 1, 0, 0, nil, "en", 2, nil)
	defer d.Stop()
	s := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/influencers.json?query=Clinton+OR+hillary", nil)
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body influencerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Failure)
	assert.Nil(t, body.ErrorCode)
}

func TestServer_HandleInfluencersRejectsEmptyQuery(t *testing.T) {
	d := dispatcher.New(t.Context(), &fakeAnalyzer{}, 1, 0, 0, nil, "en", 2, nil)
	defer d.Stop()
	s := New(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/influencers.json?query=%28%29", nil)
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body influencerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Failure)
	require.NotNil(t, body.ErrorCode)
	assert.Equal(t, 1, *body.ErrorCode)
}
