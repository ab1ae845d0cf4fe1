// Package mempool keeps size-classed sync.Pools of scratch slices used by the
// remap field and the mask planes of the native vision backend.
package mempool

import (
	"math/bits"
	"sync"
)

// classed is a set of sync.Pools keyed by size class.
type classed[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

const minClass = 1024

// sizeClass rounds n up to a power of two of at least minClass, so the pool
// count grows with log2 of the largest request rather than with each size.
func sizeClass(n int) int {
	if n <= minClass {
		return minClass
	}
	return 1 << bits.Len(uint(n-1))
}

func (c *classed[T]) pool(cls int) *sync.Pool {
	pAny, _ := c.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

func (c *classed[T]) get(n int, zero bool) []T {
	cls := sizeClass(n)
	buf, ok := c.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		return make([]T, cls)[:n]
	}
	buf = buf[:n]
	if zero {
		clear(buf)
	}
	return buf
}

func (c *classed[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// a buffer lands in the largest class its capacity still fills
	n := cap(buf)
	if n < minClass {
		return
	}
	cls := 1 << (bits.Len(uint(n)) - 1)
	c.pool(cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}

var (
	float32s classed[float32]
	uint8s   classed[uint8]
	int32s   classed[int32]
)

// GetFloat32 returns a []float32 of length n. Contents are not zeroed.
// The caller must hand it back via PutFloat32.
func GetFloat32(n int) []float32 { return float32s.get(n, false) }

// PutFloat32 returns a buffer to the pool. Nil is ignored.
func PutFloat32(buf []float32) { float32s.put(buf) }

// GetUint8 returns a zeroed []uint8 of length n.
func GetUint8(n int) []uint8 { return uint8s.get(n, true) }

// PutUint8 returns a buffer to the pool. Nil is ignored.
func PutUint8(buf []uint8) { uint8s.put(buf) }

// GetInt32 returns a zeroed []int32 of length n.
func GetInt32(n int) []int32 { return int32s.get(n, true) }

// PutInt32 returns a buffer to the pool. Nil is ignored.
func PutInt32(buf []int32) { int32s.put(buf) }
