package pcm

import (
	"bytes"
	"testing"
	"time"
)

func TestFormatMath(t *testing.T) {
	f := L16Mono16K
	if got := f.SamplesInDuration(2 * time.Second); got != 32000 {
		t.Fatalf("SamplesInDuration(2s) = %d, want 32000", got)
	}
	if got := f.BytesInDuration(time.Second); got != 32000 {
		t.Fatalf("BytesInDuration(1s) = %d, want 32000", got)
	}
	if got := f.Duration(32000); got != time.Second {
		t.Fatalf("Duration(32000) = %v, want 1s", got)
	}
	if got := f.Samples(320); got != 160 {
		t.Fatalf("Samples(320) = %d, want 160", got)
	}
}

func TestDecodeEncodeInt16(t *testing.T) {
	// 0x7FFF = max positive, 0x8000 = max negative, 0x0000 = zero.
	b := []byte{0xFF, 0x7F, 0x00, 0x80, 0x00, 0x00}
	s := DecodeInt16(b)
	if len(s) != 3 {
		t.Fatalf("DecodeInt16: got %d samples, want 3", len(s))
	}
	if s[0] < 0.999 || s[0] > 1.0 {
		t.Fatalf("s[0] = %v, want ~1.0", s[0])
	}
	if s[1] != -1.0 {
		t.Fatalf("s[1] = %v, want -1.0", s[1])
	}
	if s[2] != 0 {
		t.Fatalf("s[2] = %v, want 0", s[2])
	}

	// Clipping on encode.
	enc := EncodeInt16([]float32{2.0, -2.0, 0})
	if got := DecodeInt16(enc); got[0] < 0.999 || got[1] != -1.0 || got[2] != 0 {
		t.Fatalf("EncodeInt16 clipping: decoded %v", got)
	}
}

func TestDecodeInt16OddTail(t *testing.T) {
	s := DecodeInt16([]byte{0x00, 0x00, 0xFF})
	if len(s) != 1 {
		t.Fatalf("odd tail: got %d samples, want 1", len(s))
	}
}

func TestWriteWAV(t *testing.T) {
	samples := make([]float32, 160)
	var buf bytes.Buffer
	if err := WriteWAV(&buf, samples, 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	b := buf.Bytes()
	if len(b) != 44+320 {
		t.Fatalf("WAV length = %d, want %d", len(b), 44+320)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("bad WAV magic: %q %q", b[0:4], b[8:12])
	}
	// Sample rate field at offset 24.
	rate := uint32(b[24]) | uint32(b[25])<<8 | uint32(b[26])<<16 | uint32(b[27])<<24
	if rate != 16000 {
		t.Fatalf("WAV sample rate = %d, want 16000", rate)
	}
}

func TestReadWAV(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.5}
	var buf bytes.Buffer
	if err := WriteWAV(&buf, in, 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	samples, rate, channels, err := ReadWAV(&buf)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Fatalf("ReadWAV rate=%d channels=%d, want 16000/1", rate, channels)
	}
	if len(samples) != len(in) {
		t.Fatalf("ReadWAV returned %d samples, want %d", len(samples), len(in))
	}
	for i := range in {
		if diff := samples[i] - in[i]; diff > 0.001 || diff < -0.001 {
			t.Fatalf("samples[%d] = %v, want ~%v", i, samples[i], in[i])
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	if _, _, _, err := ReadWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatal("ReadWAV accepted garbage")
	}
}
