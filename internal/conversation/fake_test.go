// ABOUTME: Test doubles shared by conversation package tests
// ABOUTME: fakeGenerator records calls and can block or fail on demand

package conversation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGenerator implements GenerationClient for testing.
type fakeGenerator struct {
	mu sync.Mutex

	history    []Turn
	historyErr error

	// results are consumed in order by Start and Continue.
	results []fakeResult

	// gate, when set, blocks each call until a value is received.
	gate chan struct{}
	// entered receives one value per call once the call is in flight.
	entered chan string

	startCalls    []StartRequest
	continueCalls []ContinueRequest
	historyCalls  int
}

type fakeResult struct {
	turn  *Turn
	err   error
	panic bool
}

func (f *fakeGenerator) FetchHistory(ctx context.Context) ([]Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return f.history, f.historyErr
}

func (f *fakeGenerator) Start(ctx context.Context, req StartRequest) (*Turn, error) {
	f.mu.Lock()
	f.startCalls = append(f.startCalls, req)
	f.mu.Unlock()
	return f.next("start")
}

func (f *fakeGenerator) Continue(ctx context.Context, req ContinueRequest) (*Turn, error) {
	f.mu.Lock()
	f.continueCalls = append(f.continueCalls, req)
	f.mu.Unlock()
	return f.next("continue")
}

func (f *fakeGenerator) next(op string) (*Turn, error) {
	if f.entered != nil {
		f.entered <- op
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	if len(f.results) == 0 {
		f.mu.Unlock()
		return nil, fmt.Errorf("fakeGenerator: no result queued for %s", op)
	}
	r := f.results[0]
	f.results = f.results[1:]
	f.mu.Unlock()

	if r.panic {
		panic("fakeGenerator: boom")
	}
	return r.turn, r.err
}

func (f *fakeGenerator) queue(results ...fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, results...)
}

func (f *fakeGenerator) calls() (start, cont int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.startCalls), len(f.continueCalls)
}

// sketchImage returns a small valid PNG payload.
func sketchImage(t *testing.T) Image {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return Image{Data: buf.Bytes(), MIMEType: "image/png", Filename: "sketch.png"}
}

func ok(turn Turn) fakeResult {
	return fakeResult{turn: &turn}
}
