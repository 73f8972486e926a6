package system

import (
	"image"
	"sync"
)

// SurfacePool переиспользует поверхности *image.RGBA, разложенные по размеру,
// чтобы окно, переключающееся между несколькими размерами (поворот, зум),
// не выделяло полноэкранный буфер на каждый resize.
type SurfacePool struct {
	mu    sync.Mutex
	pools map[image.Point]*sync.Pool
}

func NewSurfacePool() *SurfacePool {
	return &SurfacePool{pools: make(map[image.Point]*sync.Pool)}
}

func (p *SurfacePool) pool(size image.Point) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[size]
	if !ok {
		pool = &sync.Pool{
			New: func() interface{} {
				return image.NewRGBA(image.Rectangle{Max: size})
			},
		}
		p.pools[size] = pool
	}
	return pool
}

func (p *SurfacePool) Get(w, h int) *image.RGBA {
	return p.pool(image.Pt(w, h)).Get().(*image.RGBA)
}

func (p *SurfacePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.pool(img.Rect.Max).Put(img)
}
