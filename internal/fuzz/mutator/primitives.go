// Package mutator implements the pluggable mutation operators a
// MutationalStage drives: primitive byte/bit transforms composed into a
// havoc mutator, an input-to-state dictionary mutator reading comparison
// operands harvested by a CmpObserver, and a JSON-structure-aware mutator.
package mutator

import "math/rand"

// interesting8/16/32 are AFL's boundary-value tables: values a target is
// disproportionately likely to mishandle (INT_MIN/MAX, common size
// boundaries, off-by-one neighbors).
var (
	interesting8 = []int8{-128, -1, 0, 1, 16, 32, 64, 100, 127}

	interesting16 = []int16{-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767}

	interesting32 = []int32{
		-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647,
	}
)

// primitive is the internal contract every byte-level mutation operator
// satisfies: apply one mutation to data in place (or return a differently
// sized slice for insert/delete) using rng for all randomness.
type primitive interface {
	name() string
	apply(rng *rand.Rand, data []byte) []byte
}

// bitFlip flips flipBits consecutive bits starting at a random bit offset.
type bitFlip struct{ flipBits int }

func (b bitFlip) name() string { return "bitflip" }

func (b bitFlip) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	totalBits := len(data) * 8
	if b.flipBits > totalBits {
		return data
	}
	out := append([]byte(nil), data...)
	pos := rng.Intn(totalBits - b.flipBits + 1)
	for i := 0; i < b.flipBits; i++ {
		bitPos := pos + i
		out[bitPos/8] ^= 1 << (7 - uint(bitPos%8))
	}
	return out
}

// byteFlip XORs flipBytes consecutive bytes with 0xFF.
type byteFlip struct{ flipBytes int }

func (b byteFlip) name() string { return "byteflip" }

func (b byteFlip) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) < b.flipBytes {
		return data
	}
	out := append([]byte(nil), data...)
	pos := rng.Intn(len(data) - b.flipBytes + 1)
	for i := 0; i < b.flipBytes; i++ {
		out[pos+i] ^= 0xFF
	}
	return out
}

// arithmetic adds a small random delta to a width-byte little-endian window.
type arithmetic struct {
	width    int
	maxDelta int
}

func (a arithmetic) name() string { return "arithmetic" }

func (a arithmetic) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) < a.width {
		return data
	}
	out := append([]byte(nil), data...)
	pos := rng.Intn(len(data) - a.width + 1)
	delta := rng.Intn(2*a.maxDelta+1) - a.maxDelta

	var v uint32
	for i := 0; i < a.width; i++ {
		v |= uint32(out[pos+i]) << (8 * uint(i))
	}
	v = uint32(int64(v) + int64(delta))
	for i := 0; i < a.width; i++ {
		out[pos+i] = byte(v >> (8 * uint(i)))
	}
	return out
}

// interestingValue overwrites a width-byte window with a known
// boundary-prone value from interesting8/16/32.
type interestingValue struct{ width int }

func (v interestingValue) name() string { return "interesting" }

func (v interestingValue) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) < v.width {
		return data
	}
	out := append([]byte(nil), data...)
	pos := rng.Intn(len(data) - v.width + 1)

	switch v.width {
	case 1:
		out[pos] = byte(interesting8[rng.Intn(len(interesting8))])
	case 2:
		val := uint16(interesting16[rng.Intn(len(interesting16))])
		out[pos] = byte(val)
		out[pos+1] = byte(val >> 8)
	case 4:
		val := uint32(interesting32[rng.Intn(len(interesting32))])
		for i := 0; i < 4; i++ {
			out[pos+i] = byte(val >> (8 * uint(i)))
		}
	}
	return out
}

// byteSwap exchanges two distinct, randomly chosen byte positions.
type byteSwap struct{}

func (byteSwap) name() string { return "byteswap" }

func (byteSwap) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) < 2 {
		return data
	}
	out := append([]byte(nil), data...)
	i := rng.Intn(len(out))
	j := rng.Intn(len(out) - 1)
	if j >= i {
		j++
	}
	out[i], out[j] = out[j], out[i]
	return out
}

// randomByte overwrites a single random position with a random value.
type randomByte struct{}

func (randomByte) name() string { return "randombyte" }

func (randomByte) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	out := append([]byte(nil), data...)
	out[rng.Intn(len(out))] = byte(rng.Intn(256))
	return out
}

// deleteBytes removes a small random-length run.
type deleteBytes struct{ maxDelete int }

func (deleteBytes) name() string { return "delete" }

func (d deleteBytes) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := 1 + rng.Intn(d.maxDelete)
	if n > len(data) {
		n = len(data)
	}
	pos := rng.Intn(len(data) - n + 1)
	out := make([]byte, 0, len(data)-n)
	out = append(out, data[:pos]...)
	out = append(out, data[pos+n:]...)
	return out
}

// insertBytes inserts a small run of random bytes at a random position.
type insertBytes struct{ maxInsert int }

func (insertBytes) name() string { return "insert" }

func (ins insertBytes) apply(rng *rand.Rand, data []byte) []byte {
	n := 1 + rng.Intn(ins.maxInsert)
	pos := 0
	if len(data) > 0 {
		pos = rng.Intn(len(data) + 1)
	}
	chunk := make([]byte, n)
	for i := range chunk {
		chunk[i] = byte(rng.Intn(256))
	}
	out := make([]byte, 0, len(data)+n)
	out = append(out, data[:pos]...)
	out = append(out, chunk...)
	out = append(out, data[pos:]...)
	return out
}

// cloneRun duplicates a randomly chosen run of bytes, inserting the copy
// immediately after the original run.
type cloneRun struct{ maxClone int }

func (cloneRun) name() string { return "clone" }

func (c cloneRun) apply(rng *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := 1 + rng.Intn(c.maxClone)
	if n > len(data) {
		n = len(data)
	}
	pos := rng.Intn(len(data) - n + 1)
	run := data[pos : pos+n]
	out := make([]byte, 0, len(data)+n)
	out = append(out, data[:pos+n]...)
	out = append(out, run...)
	out = append(out, data[pos+n:]...)
	return out
}

// defaultPrimitives returns one instance of every primitive a HavocMutator
// draws from, mirroring the operator set of a conventional AFL-style havoc
// stage (bit/byte flips at three widths, arithmetic at three widths,
// interesting-value overwrite at three widths, swap, single-byte
// randomization, delete, insert, clone).
func defaultPrimitives() []primitive {
	return []primitive{
		bitFlip{flipBits: 1},
		bitFlip{flipBits: 2},
		bitFlip{flipBits: 4},
		byteFlip{flipBytes: 1},
		byteFlip{flipBytes: 2},
		byteFlip{flipBytes: 4},
		arithmetic{width: 1, maxDelta: 35},
		arithmetic{width: 2, maxDelta: 35},
		arithmetic{width: 4, maxDelta: 35},
		interestingValue{width: 1},
		interestingValue{width: 2},
		interestingValue{width: 4},
		byteSwap{},
		randomByte{},
		deleteBytes{maxDelete: 16},
		insertBytes{maxInsert: 16},
		cloneRun{maxClone: 16},
	}
}
