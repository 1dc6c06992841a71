package rng

const (
	mtN       = 624
	mtM       = 397
	matrixA   = 0x9908b0df
	upperMask = 0x80000000
	lowerMask = 0x7fffffff
)

// MT19937 is the 32-bit Mersenne Twister with the init_genrand seeding
// procedure, so a given seed reproduces the classic genrand_int32 stream.
type MT19937 struct {
	mt  [mtN]uint32
	mti int
}

// NewMT19937 returns a generator seeded with the low 32 bits of seed.
func NewMT19937(seed uint64) *MT19937 {
	m := &MT19937{}
	m.Seed(seed)
	return m
}

// Seed reinitialises the state. Only the low 32 bits of seed are used.
func (m *MT19937) Seed(seed uint64) {
	m.mt[0] = uint32(seed)
	for i := 1; i < mtN; i++ {
		prev := m.mt[i-1]
		m.mt[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	m.mti = mtN
}

// Uint32 returns the next tempered output word.
func (m *MT19937) Uint32() uint32 {
	if m.mti >= mtN {
		m.twist()
	}

	y := m.mt[m.mti]
	m.mti++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

func (m *MT19937) twist() {
	var kk int
	for ; kk < mtN-mtM; kk++ {
		y := (m.mt[kk] & upperMask) | (m.mt[kk+1] & lowerMask)
		m.mt[kk] = m.mt[kk+mtM] ^ (y >> 1) ^ mag01(y)
	}
	for ; kk < mtN-1; kk++ {
		y := (m.mt[kk] & upperMask) | (m.mt[kk+1] & lowerMask)
		m.mt[kk] = m.mt[kk+mtM-mtN] ^ (y >> 1) ^ mag01(y)
	}
	y := (m.mt[mtN-1] & upperMask) | (m.mt[0] & lowerMask)
	m.mt[mtN-1] = m.mt[mtM-1] ^ (y >> 1) ^ mag01(y)
	m.mti = 0
}

func mag01(y uint32) uint32 {
	if y&1 == 0 {
		return 0
	}
	return matrixA
}
