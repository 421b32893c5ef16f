package matching

import (
	"image"
	"sync"
)

// surfacePool hands out correlation buffers keyed by surface dimensions.
// A buffer belongs to exactly one caller between get and put.
type surfacePool struct {
	mu    sync.Mutex
	pools map[image.Point]*sync.Pool
}

func newSurfacePool() *surfacePool {
	return &surfacePool{pools: make(map[image.Point]*sync.Pool)}
}

func (p *surfacePool) pool(size image.Point) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sp, ok := p.pools[size]
	if !ok {
		n := size.X * size.Y
		sp = &sync.Pool{New: func() any {
			buf := make([]float64, n)
			return &buf
		}}
		p.pools[size] = sp
	}
	return sp
}

// get returns a zeroed buffer of width*height scores.
func (p *surfacePool) get(width, height int) *[]float64 {
	buf := p.pool(image.Pt(width, height)).Get().(*[]float64)
	clear(*buf)
	return buf
}

func (p *surfacePool) put(width, height int, buf *[]float64) {
	p.pool(image.Pt(width, height)).Put(buf)
}

var surfaces = newSurfacePool()
