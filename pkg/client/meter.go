package client

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// countingReader wraps an io.Reader and counts bytes read using atomic counter
type countingReader struct {
	r       io.Reader
	counter *atomic.Uint64
}

func (cr *countingReader) Read(p []byte) (n int, err error) {
	n, err = cr.r.Read(p)
	if n > 0 && cr.counter != nil {
		cr.counter.Add(uint64(n))
	}
	return n, err
}

// countingWriter wraps an io.Writer and counts bytes written using atomic counter
type countingWriter struct {
	w       io.Writer
	counter *atomic.Uint64
}

func (cw *countingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if n > 0 && cw.counter != nil {
		cw.counter.Add(uint64(n))
	}
	return n, err
}

// newByteLimiter returns a token bucket refilling bytesPerSec tokens per
// second, with a burst of a tenth of that for smoother throttling
func newByteLimiter(bytesPerSec int) *rate.Limiter {
	burst := bytesPerSec / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// throttledReader wraps an io.Reader and limits read rate to bytesPerSec
type throttledReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

func newThrottledReader(r io.Reader, bytesPerSec int) *throttledReader {
	return &throttledReader{r: r, limiter: newByteLimiter(bytesPerSec)}
}

func (tr *throttledReader) Read(p []byte) (n int, err error) {
	// Never read more than one burst so WaitN can always be satisfied
	if burst := tr.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err = tr.r.Read(p)
	if n > 0 {
		if waitErr := tr.limiter.WaitN(context.Background(), n); waitErr != nil && err == nil {
			err = waitErr
		}
	}
	return n, err
}

// throttledWriter wraps an io.Writer and limits write rate to bytesPerSec
type throttledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
}

func newThrottledWriter(w io.Writer, bytesPerSec int) *throttledWriter {
	return &throttledWriter{w: w, limiter: newByteLimiter(bytesPerSec)}
}

func (tw *throttledWriter) Write(p []byte) (n int, err error) {
	burst := tw.limiter.Burst()

	// Write in chunks of at most one burst to maintain rate limit
	for n < len(p) {
		chunk := len(p) - n
		if chunk > burst {
			chunk = burst
		}
		if err := tw.limiter.WaitN(context.Background(), chunk); err != nil {
			return n, err
		}
		written, err := tw.w.Write(p[n : n+chunk])
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
