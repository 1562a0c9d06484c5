package pcm

import (
	"errors"
	"fmt"
	"io"
)

// ReadWAV parses a RIFF/WAV stream and returns the interleaved float32
// samples with the declared rate and channel count. Only uncompressed
// PCM16 is accepted; chunks other than "fmt " and "data" are skipped.
func ReadWAV(r io.Reader) (samples []float32, rate, channels int, err error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("pcm: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("pcm: not a wav stream")
	}

	var haveFmt bool
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, 0, fmt.Errorf("pcm: read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(getUint32(hdr[4:8]))

		switch id {
		case "fmt ":
			chunk := make([]byte, size)
			if _, err := io.ReadFull(r, chunk); err != nil {
				return nil, 0, 0, fmt.Errorf("pcm: read fmt chunk: %w", err)
			}
			if len(chunk) < 16 {
				return nil, 0, 0, errors.New("pcm: truncated fmt chunk")
			}
			if format := getUint16(chunk[0:2]); format != 1 {
				return nil, 0, 0, fmt.Errorf("pcm: unsupported wav format %d, want PCM", format)
			}
			if depth := getUint16(chunk[14:16]); depth != 16 {
				return nil, 0, 0, fmt.Errorf("pcm: unsupported bit depth %d, want 16", depth)
			}
			channels = int(getUint16(chunk[2:4]))
			rate = int(getUint32(chunk[4:8]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, 0, errors.New("pcm: data chunk before fmt chunk")
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, 0, 0, fmt.Errorf("pcm: read data chunk: %w", err)
			}
			return DecodeInt16(data), rate, channels, nil

		default:
			// Chunks are word-aligned; skip the pad byte on odd sizes.
			if size%2 == 1 {
				size++
			}
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return nil, 0, 0, fmt.Errorf("pcm: skip %s chunk: %w", id, err)
			}
		}
	}
	return nil, 0, 0, errors.New("pcm: no data chunk")
}

func getUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
