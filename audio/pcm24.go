package audio

import "fmt"

// The wire codec for the pedal's native track payload: packed 3-byte
// little-endian two's-complement samples, no padding byte.

const bytesPerSample = 3

// EncodePCM24 packs samples into 3-byte little-endian form. Values outside
// the 24-bit range are clamped.
func EncodePCM24(samples []int32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if s > Native.maxValue() {
			s = Native.maxValue()
		} else if s < Native.minValue() {
			s = Native.minValue()
		}
		u := uint32(s)
		out[i*3] = byte(u)
		out[i*3+1] = byte(u >> 8)
		out[i*3+2] = byte(u >> 16)
	}
	return out
}

// DecodePCM24 unpacks 3-byte little-endian samples, sign-extending each to
// int32.
func DecodePCM24(data []byte) ([]int32, error) {
	if len(data)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of 24-bit samples",
			ErrMisalignedSamples, len(data))
	}

	samples := make([]int32, len(data)/bytesPerSample)
	for i := range samples {
		v := uint32(data[i*3]) | uint32(data[i*3+1])<<8 | uint32(data[i*3+2])<<16
		// Sign extend from bit 23.
		if v&0x800000 != 0 {
			v |= 0xFF000000
		}
		samples[i] = int32(v)
	}
	return samples, nil
}
