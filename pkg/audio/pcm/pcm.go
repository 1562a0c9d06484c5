// Package pcm provides linear PCM format math and codecs between raw
// 16-bit little-endian sample bytes and float32 sample slices.
//
// The analysis pipeline works on float32 samples in [-1, 1); the wire and
// storage layers carry PCM16. This package is the boundary between the two.
package pcm

import (
	"io"
	"time"
)

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1.
	// This is the canonical analysis format.
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format represents a linear PCM format configuration.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid format")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 1
	}
	panic("pcm: invalid format")
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 16
	}
	panic("pcm: invalid format")
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.Channels()) * int64(f.Depth()) / 8
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid format")
}

// DecodeInt16 converts little-endian PCM16 bytes to float32 samples in
// [-1, 1). A trailing odd byte is ignored.
func DecodeInt16(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(b[i*2]) | int16(b[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// EncodeInt16 converts float32 samples to little-endian PCM16 bytes.
// Samples outside [-1, 1] are clipped.
func EncodeInt16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		var s int16
		switch {
		case v >= 1.0:
			s = 32767
		case v <= -1.0:
			s = -32768
		default:
			s = int16(v * 32767.0)
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// WriteWAV writes samples as a PCM16 mono RIFF/WAV stream at the given
// sample rate. The whole payload is buffered into the header up front, so
// w receives a complete, seekless WAV blob.
func WriteWAV(w io.Writer, samples []float32, rate int) error {
	data := EncodeInt16(samples)

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	putUint32(hdr[4:8], uint32(36+len(data)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	putUint32(hdr[16:20], 16)       // fmt chunk size
	putUint16(hdr[20:22], 1)        // PCM
	putUint16(hdr[22:24], 1)        // mono
	putUint32(hdr[24:28], uint32(rate))
	putUint32(hdr[28:32], uint32(rate*2)) // byte rate
	putUint16(hdr[32:34], 2)              // block align
	putUint16(hdr[34:36], 16)             // bits per sample
	copy(hdr[36:40], "data")
	putUint32(hdr[40:44], uint32(len(data)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
