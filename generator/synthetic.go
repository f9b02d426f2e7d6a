package generator

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// Synthetic draws simple zig-zag glyphs whose advance follows the character
// width table. The first call for a (text, bias, style) triple is the same on
// every instance; later calls for the same triple produce new variations.
type Synthetic struct {
	// Latency simulates model inference time.
	Latency time.Duration

	mu    sync.Mutex
	calls map[uint64]uint64
}

func NewSynthetic() *Synthetic {
	return &Synthetic{calls: make(map[uint64]uint64)}
}

func (g *Synthetic) Generate(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	key := synthKey(text, ts)
	g.mu.Lock()
	variant := g.calls[key]
	g.calls[key] = variant + 1
	g.mu.Unlock()

	rng := rand.New(rand.NewPCG(key, variant))
	return drawWord(text, ts.Bias, rng), nil
}

func synthKey(text string, ts style.TextStyle) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(ts.Bias))
	binary.LittleEndian.PutUint64(buf[8:], uint64(ts.StyleIndex))
	h.Write(buf[:])
	return h.Sum64()
}

// drawWord lays glyphs left to right. Higher bias means less wobble.
func drawWord(text string, bias float64, rng *rand.Rand) stroke.Sequence {
	wobble := 1.5 / math.Max(bias, 0.1)
	height := 0.55 * stroke.ReferenceFontSize
	var seq stroke.Sequence
	x := 0.0
	for _, r := range text {
		advance := layout.CharWidth(r) * stroke.ReferenceFontSize * (1 + (rng.Float64()-0.5)*0.1)
		if r == ' ' {
			x += advance
			continue
		}
		jitter := func() float64 { return (rng.Float64() - 0.5) * wobble }
		seq = append(seq,
			stroke.Point{X: x + jitter(), Y: jitter()},
			stroke.Point{X: x + advance*0.3, Y: height + jitter()},
			stroke.Point{X: x + advance*0.65, Y: height*0.4 + jitter()},
			stroke.Point{X: x + advance, Y: jitter(), PenUp: true},
		)
		x += advance
	}
	return seq
}
