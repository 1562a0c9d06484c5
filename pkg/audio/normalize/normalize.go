// Package normalize converts arbitrary decoded audio into the canonical
// analysis signal: mono, 16 kHz, DC-free, gain-boosted, peak-normalized
// float32 samples.
//
// Every transform is pure; given the same input and configuration the
// output is identical. Validation happens before any expensive work so
// callers can reject bad audio without paying for model inference.
package normalize

import (
	"fmt"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"
)

// TargetRate is the canonical analysis sample rate in Hz.
const TargetRate = 16000

// Defaults chosen to match field recordings from consumer microphones.
const (
	DefaultBoost       = 5.0
	DefaultMinDuration = time.Second
	DefaultMaxDuration = 10 * time.Second

	// silenceFloor is the peak amplitude below which a DC-free signal is
	// considered silent.
	silenceFloor = 0.01

	// peakTarget leaves headroom below full scale after normalization.
	peakTarget = 0.95
)

// Signal is a finite run of decoded audio samples. Multi-channel signals
// are interleaved.
type Signal struct {
	Samples  []float32
	Rate     int
	Channels int
}

// Duration returns the play time of the signal.
func (s Signal) Duration() time.Duration {
	if s.Rate <= 0 || s.Channels <= 0 {
		return 0
	}
	frames := len(s.Samples) / s.Channels
	return time.Duration(frames) * time.Second / time.Duration(s.Rate)
}

// InvalidAudioError reports audio that cannot be used for analysis.
// It is user-correctable: the caller should record again.
type InvalidAudioError struct {
	Reason string
}

func (e *InvalidAudioError) Error() string {
	return "normalize: invalid audio: " + e.Reason
}

// Normalizer converts raw decoded audio into the canonical analysis signal.
// The zero value is not usable; use New.
type Normalizer struct {
	boost       float32
	minDuration time.Duration
	maxDuration time.Duration
}

// Config controls normalization. Zero fields fall back to defaults.
type Config struct {
	// Boost is the gain multiplier applied before peak normalization,
	// compensating for quiet microphones.
	Boost float64

	// MinDuration and MaxDuration bound the accepted utterance length.
	MinDuration time.Duration
	MaxDuration time.Duration
}

// New creates a Normalizer.
func New(cfg Config) *Normalizer {
	n := &Normalizer{
		boost:       float32(cfg.Boost),
		minDuration: cfg.MinDuration,
		maxDuration: cfg.MaxDuration,
	}
	if cfg.Boost == 0 {
		n.boost = DefaultBoost
	}
	if n.minDuration == 0 {
		n.minDuration = DefaultMinDuration
	}
	if n.maxDuration == 0 {
		n.maxDuration = DefaultMaxDuration
	}
	return n
}

// Normalize validates sig and returns the canonical mono 16 kHz signal.
// The input is not modified. Returns *InvalidAudioError when the signal
// is empty, outside the accepted duration window, or silent.
func (n *Normalizer) Normalize(sig Signal) (Signal, error) {
	if len(sig.Samples) == 0 || sig.Rate <= 0 {
		return Signal{}, &InvalidAudioError{Reason: "empty signal"}
	}
	if sig.Channels <= 0 {
		sig.Channels = 1
	}

	if d := sig.Duration(); d < n.minDuration {
		return Signal{}, &InvalidAudioError{
			Reason: fmt.Sprintf("too short: %v < %v", d.Round(time.Millisecond), n.minDuration),
		}
	} else if d > n.maxDuration {
		return Signal{}, &InvalidAudioError{
			Reason: fmt.Sprintf("too long: %v > %v", d.Round(time.Millisecond), n.maxDuration),
		}
	}

	mono := downmix(sig)

	samples, err := resample(mono.Samples, mono.Rate, TargetRate)
	if err != nil {
		return Signal{}, fmt.Errorf("normalize: resample %d -> %d: %w", mono.Rate, TargetRate, err)
	}

	removeDC(samples)

	peak := peakAbs(samples)
	if peak < silenceFloor {
		return Signal{}, &InvalidAudioError{Reason: "silent signal"}
	}

	// Boost, clip, then renormalize the peak into safe range. Clipping
	// before peak normalization mirrors what a hot microphone preamp
	// would do; relative dynamics below the clip point are preserved.
	for i, v := range samples {
		v *= n.boost
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = v
	}
	scale := peakTarget / peakAbs(samples)
	for i := range samples {
		samples[i] *= scale
	}

	return Signal{Samples: samples, Rate: TargetRate, Channels: 1}, nil
}

// downmix averages interleaved channels into a fresh mono signal.
// Mono input is copied so later stages never alias the caller's slice.
func downmix(sig Signal) Signal {
	if sig.Channels == 1 {
		out := make([]float32, len(sig.Samples))
		copy(out, sig.Samples)
		return Signal{Samples: out, Rate: sig.Rate, Channels: 1}
	}
	frames := len(sig.Samples) / sig.Channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range sig.Channels {
			sum += sig.Samples[i*sig.Channels+c]
		}
		out[i] = sum / float32(sig.Channels)
	}
	return Signal{Samples: out, Rate: sig.Rate, Channels: 1}
}

// resample converts mono samples from srcRate to dstRate.
func resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate == dstRate {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, err
	}

	input := make([]float64, len(samples))
	for i, v := range samples {
		input[i] = float64(v)
	}
	output, err := rs.Process(input)
	if err != nil {
		return nil, err
	}

	out := make([]float32, len(output))
	for i, v := range output {
		out[i] = float32(v)
	}
	return out, nil
}

// removeDC subtracts the signal mean in place.
func removeDC(samples []float32) {
	var sum float64
	for _, v := range samples {
		sum += float64(v)
	}
	mean := float32(sum / float64(len(samples)))
	for i := range samples {
		samples[i] -= mean
	}
}

// peakAbs returns the maximum absolute amplitude.
func peakAbs(samples []float32) float32 {
	var peak float32
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
