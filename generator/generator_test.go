package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/scribe/style"
)

var bodyStyle, _ = style.DefaultSheet().Lookup("body")

func TestSyntheticDeterministicFirstCall(t *testing.T) {
	a, err := NewSynthetic().Generate(context.Background(), "hello", bodyStyle)
	require.NoError(t, err)
	b, err := NewSynthetic().Generate(context.Background(), "hello", bodyStyle)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
	assert.True(t, a[len(a)-1].PenUp)
}

func TestSyntheticVariesOnRepeat(t *testing.T) {
	g := NewSynthetic()
	first, err := g.Generate(context.Background(), "hello", bodyStyle)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), "hello", bodyStyle)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSyntheticWidthTracksCharTable(t *testing.T) {
	seq, err := NewSynthetic().Generate(context.Background(), "mmmm", bodyStyle)
	require.NoError(t, err)
	narrow, err := NewSynthetic().Generate(context.Background(), "iiii", bodyStyle)
	require.NoError(t, err)
	assert.Greater(t, seq.Width(), narrow.Width()*2)
}

func TestSyntheticHonoursContext(t *testing.T) {
	g := NewSynthetic()
	g.Latency = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, "x", bodyStyle)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ink", req.Text)
		assert.Equal(t, bodyStyle.StyleIndex, req.Style)
		json.NewEncoder(w).Encode(generateResponse{Strokes: [][3]float64{{0, 0, 0}, {5, 2, 1}}})
	}))
	defer srv.Close()

	seq, err := NewRemote(srv.URL+"/", time.Second).Generate(context.Background(), "ink", bodyStyle)
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.False(t, seq[0].PenUp)
	assert.True(t, seq[1].PenUp)
	assert.Equal(t, 5.0, seq[1].X)
}

func TestRemoteErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		_, err := NewRemote(srv.URL, time.Second).Generate(context.Background(), "ink", bodyStyle)
		srv.Close()

		var genErr *GenerationError
		require.True(t, errors.As(err, &genErr), "status %d", tc.status)
		assert.Equal(t, tc.status, genErr.StatusCode)
		assert.Equal(t, tc.retryable, IsRetryable(err), "status %d", tc.status)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(&GenerationError{Retryable: true}))
	assert.False(t, IsRetryable(&GenerationError{}))
}
