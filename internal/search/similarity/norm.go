package similarity

import (
	"math"
	"sync"
)

// Norm bytes use 3 mantissa bits and a 5 bit exponent biased so that byte 1
// is roughly 5.8e-10 and byte 255 roughly 7.5e9. Byte 0 decodes to 0.
const (
	mantissaBits = 3
	zeroExponent = 15
	fzero        = (63 - zeroExponent) << mantissaBits
)

var (
	normTableOnce sync.Once
	normTable     [256]float32
)

func buildNormTable() {
	for i := range normTable {
		normTable[i] = byteToFloat(byte(i))
	}
}

// EncodeNorm quantizes f into one byte. The mapping is monotonic and
// truncates toward zero. Negative values, -0 and negative NaN encode to 0;
// positive values too small to represent encode to 1; values too large to
// represent, +Inf and NaN encode to 255.
func EncodeNorm(f float32) byte {
	bits := int32(math.Float32bits(f))
	small := bits >> (24 - mantissaBits)
	if small <= fzero {
		if bits <= 0 {
			return 0
		}
		return 1
	}
	if small >= fzero+0x100 {
		return 0xFF
	}
	return byte(small - fzero)
}

// DecodeNorm returns the float a norm byte stands for.
func DecodeNorm(b byte) float32 {
	normTableOnce.Do(buildNormTable)
	return normTable[b]
}

// NormDecoder returns the shared decode table. Callers must not modify it.
func NormDecoder() *[256]float32 {
	normTableOnce.Do(buildNormTable)
	return &normTable
}

func byteToFloat(b byte) float32 {
	if b == 0 {
		return 0
	}
	bits := uint32(b) << (24 - mantissaBits)
	bits += (63 - zeroExponent) << 24
	return math.Float32frombits(bits)
}
