package preview

import (
	"context"
	"sync"
)

// Lazy derives a thumbnail at most once, on first request. Deriving the
// preview never blocks staging the file it belongs to.
type Lazy struct {
	payload []byte
	maxDim  int

	once sync.Once
	data []byte
	err  error
}

func NewLazy(payload []byte, maxDim int) *Lazy {
	return &Lazy{payload: payload, maxDim: maxDim}
}

// Get returns the thumbnail, computing it on the first call.
// A cancelled first call is not memoized.
func (l *Lazy) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.once.Do(func() {
		l.data, l.err = Thumbnail(context.WithoutCancel(ctx), l.payload, l.maxDim)
	})
	return l.data, l.err
}
