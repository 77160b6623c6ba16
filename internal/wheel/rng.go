package wheel

import (
	"crypto/rand"
	"encoding/binary"
)

// Source picks an index uniformly in [0, n).
type Source interface {
	Intn(n int) int
}

type XorShift32 struct {
	state uint32
}

func NewXorShift32(seed uint32) *XorShift32 {
	if seed == 0 {
		seed = 0x12345678
	}
	return &XorShift32{state: seed}
}

// NewRandomSource seeds a XorShift32 from crypto/rand.
func NewRandomSource() *XorShift32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return NewXorShift32(0)
	}
	return NewXorShift32(binary.BigEndian.Uint32(buf[:]))
}

func (x *XorShift32) Next() uint32 {
	s := x.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	x.state = s
	return s
}

func (x *XorShift32) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	// rejection sampling keeps the draw uniform for n that do not divide 2^32
	limit := ^uint32(0) - ^uint32(0)%uint32(n)
	for {
		v := x.Next()
		if v < limit {
			return int(v % uint32(n))
		}
	}
}
