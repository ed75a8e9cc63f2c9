// Package pcmconv holds the little-endian PCM <-> float32 conversion
// helpers shared by the flac, opus, mp3, resample and stream decoders in
// pkg/decoders and by pkg/recorder: a single normalization routine per bit
// depth so every caller treats full scale identically. The wav and g711
// decoders do their own conversion.
package pcmconv

import "fmt"

// BytesToFloat32 converts a little-endian PCM byte buffer at bitDepth into
// normalized float32 samples in [-1, 1), appending to dst.
func BytesToFloat32(dst []float32, pcm []byte, bitDepth int) ([]float32, error) {
	switch bitDepth {
	case 16:
		n := len(pcm) / 2
		for i := 0; i < n; i++ {
			v := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
			dst = append(dst, float32(v)/32768.0)
		}
	case 24:
		n := len(pcm) / 3
		for i := 0; i < n; i++ {
			raw := int32(pcm[i*3]) | int32(pcm[i*3+1])<<8 | int32(pcm[i*3+2])<<16
			if raw&0x800000 != 0 {
				raw |= ^int32(0xFFFFFF)
			}
			dst = append(dst, float32(raw)/8388608.0)
		}
	case 32:
		n := len(pcm) / 4
		for i := 0; i < n; i++ {
			v := int32(uint32(pcm[i*4]) | uint32(pcm[i*4+1])<<8 | uint32(pcm[i*4+2])<<16 | uint32(pcm[i*4+3])<<24)
			dst = append(dst, float32(v)/2147483648.0)
		}
	case 8:
		for i := 0; i < len(pcm); i++ {
			dst = append(dst, (float32(pcm[i])-128)/128.0)
		}
	default:
		return dst, fmt.Errorf("pcmconv: unsupported bit depth %d", bitDepth)
	}
	return dst, nil
}

// Float32ToInt16LE encodes float32 samples in [-1, 1] to little-endian
// 16-bit PCM bytes, appending to dst. Used by decoders/components that must
// hand samples to a byte-oriented codec (e.g. the resample decorator).
func Float32ToInt16LE(dst []byte, src []float32) []byte {
	for _, v := range src {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}

// Int16LEToFloat32 decodes little-endian 16-bit PCM bytes to float32
// samples in [-1, 1), appending to dst.
func Int16LEToFloat32(dst []float32, pcm []byte) []float32 {
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		v := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		dst = append(dst, float32(v)/32768.0)
	}
	return dst
}

// BytesPerSample returns the byte footprint of one sample at bitDepth.
func BytesPerSample(bitDepth int) int {
	return bitDepth / 8
}
