package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ownaudio/goaudio/pkg/decoders/flac"
	"github.com/ownaudio/goaudio/pkg/decoders/g711"
	"github.com/ownaudio/goaudio/pkg/decoders/mp3"
	"github.com/ownaudio/goaudio/pkg/decoders/ogg"
	"github.com/ownaudio/goaudio/pkg/decoders/opus"
	"github.com/ownaudio/goaudio/pkg/decoders/resample"
	"github.com/ownaudio/goaudio/pkg/decoders/wav"
	"github.com/ownaudio/goaudio/pkg/types"
)

// NewDecoder opens fileName with the types.FrameDecoder matching its
// extension. Supports .wav, .mp3, .flac/.fla, .ogg and .opus.
// G.711 streams carry no extension-derivable format and are not handled
// here; construct g711.NewDecoder directly when the law/rate are known.
func NewDecoder(fileName string) (types.FrameDecoder, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch ext {
	case ".wav":
		return wav.NewDecoder(fileName)
	case ".mp3":
		return mp3.NewDecoder(fileName)
	case ".flac", ".fla":
		return flac.NewDecoder(fileName)
	case ".ogg":
		return ogg.NewDecoder(fileName)
	case ".opus":
		return opus.NewDecoder(fileName)
	default:
		return nil, fmt.Errorf("decoders: unsupported file format %q (supported: .wav, .mp3, .flac, .fla, .ogg, .opus)", ext)
	}
}

// NewResamplingDecoder opens fileName and wraps its native decoder with a
// rate converter targeting outRate, for mixers running at a fixed engine
// sample rate fed sources recorded at a different one (spec §6).
func NewResamplingDecoder(fileName string, outRate int) (types.FrameDecoder, error) {
	base, err := NewDecoder(fileName)
	if err != nil {
		return nil, err
	}
	_, inRate, _, _ := base.StreamInfo()
	if inRate == outRate {
		return base, nil
	}
	return resample.New(base, outRate)
}

// NewG711Decoder opens a raw, headerless G.711 stream at path.
func NewG711Decoder(path string, law g711.Law, sampleRate int) (types.FrameDecoder, error) {
	return g711.NewDecoder(path, law, sampleRate)
}
