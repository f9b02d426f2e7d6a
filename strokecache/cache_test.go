package strokecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/generator"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

var baseStyle = style.TextStyle{FontSize: 18, Bias: 1.5, Scale: 0.8, StyleIndex: 20, Align: dsl.AlignJustify}

func countingGen(calls *atomic.Int64) generator.Generator {
	return generator.Func(func(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
		n := calls.Add(1)
		return stroke.Sequence{{X: float64(n)}, {X: float64(n) + 1, PenUp: true}}, nil
	})
}

func TestFingerprintIgnoresPlacementFields(t *testing.T) {
	other := baseStyle
	other.FontSize = 30
	other.Align = dsl.AlignRight
	assert.Equal(t, FingerprintOf("word", baseStyle), FingerprintOf("word", other))

	biased := baseStyle
	biased.Bias = 2
	assert.NotEqual(t, FingerprintOf("word", baseStyle), FingerprintOf("word", biased))

	styled := baseStyle
	styled.StyleIndex = 3
	assert.NotEqual(t, FingerprintOf("word", baseStyle), FingerprintOf("word", styled))

	scaled := baseStyle
	scaled.Scale = 1
	assert.NotEqual(t, FingerprintOf("word", baseStyle), FingerprintOf("word", scaled))
}

func TestFingerprintNormalisesText(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	assert.Equal(t, FingerprintOf(composed, baseStyle), FingerprintOf(" "+decomposed+"\n", baseStyle))
	assert.NotEqual(t, FingerprintOf("cafe", baseStyle), FingerprintOf(composed, baseStyle))
}

func TestGetOrGenerateDeterministic(t *testing.T) {
	var calls atomic.Int64
	c := New(Config{Size: 16})
	gen := countingGen(&calls)

	first, err := c.GetOrGenerate(context.Background(), "ink", baseStyle, gen)
	require.NoError(t, err)

	resized := baseStyle
	resized.FontSize = 40
	resized.Align = dsl.AlignCenter
	second, err := c.GetOrGenerate(context.Background(), "ink", resized, gen)
	require.NoError(t, err)

	assert.Equal(t, first.Strokes, second.Strokes)
	assert.Equal(t, int64(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Generations)
	assert.Equal(t, 1, stats.Size)
}

func TestSingleFlight(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	gen := generator.Func(func(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
		calls.Add(1)
		<-release
		return stroke.Sequence{{X: 1, PenUp: true}}, nil
	})
	c := New(Config{Size: 16})

	var wg sync.WaitGroup
	results := make([]Entry, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.GetOrGenerate(context.Background(), "shared", baseStyle, gen)
			assert.NoError(t, err)
			results[i] = e
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, e := range results {
		assert.Equal(t, results[0].Strokes, e.Strokes)
	}
}

func TestFailureNotCached(t *testing.T) {
	c := New(Config{Size: 16})
	boom := errors.New("boom")
	failing := generator.Func(func(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
		return nil, boom
	})
	_, err := c.GetOrGenerate(context.Background(), "x", baseStyle, failing)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	var calls atomic.Int64
	_, err = c.GetOrGenerate(context.Background(), "x", baseStyle, countingGen(&calls))
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestWaiterCancelDoesNotAbortGeneration(t *testing.T) {
	c := New(Config{Size: 16})
	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	gen := generator.Func(func(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
		close(started)
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return stroke.Sequence{{X: 2, PenUp: true}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrGenerate(ctx, "slow", baseStyle, gen)
		errCh <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, sawCancel.Load())
}

func TestInsertNeverOverwrites(t *testing.T) {
	c := New(Config{Size: 4})
	fp := FingerprintOf("w", baseStyle)
	first := Entry{Strokes: stroke.Sequence{{X: 1}}}
	second := Entry{Strokes: stroke.Sequence{{X: 2}}}

	assert.Equal(t, first, c.Insert(fp, first))
	assert.Equal(t, first, c.Insert(fp, second))
	got, ok := c.Lookup(fp)
	require.True(t, ok)
	assert.Equal(t, first.Strokes, got.Strokes)
}

func TestCapacityEviction(t *testing.T) {
	c := New(Config{Size: 2})
	var calls atomic.Int64
	gen := countingGen(&calls)
	for _, w := range []string{"a", "b", "c"} {
		_, err := c.GetOrGenerate(context.Background(), w, baseStyle, gen)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup(FingerprintOf("a", baseStyle))
	assert.False(t, ok, "least recently used entry should be evicted")
	assert.GreaterOrEqual(t, c.Stats().Evictions, int64(1))
}

func TestAgeExpiry(t *testing.T) {
	c := New(Config{Size: 8, TTL: 30 * time.Millisecond})
	fp := FingerprintOf("old", baseStyle)
	c.Insert(fp, Entry{Strokes: stroke.Sequence{{X: 1}}})
	_, ok := c.Lookup(fp)
	require.True(t, ok)
	time.Sleep(80 * time.Millisecond)
	_, ok = c.Lookup(fp)
	assert.False(t, ok)
}
