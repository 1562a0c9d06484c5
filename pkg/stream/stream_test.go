package stream_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/auth"
	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/stream"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

var (
	genuineVec  = []float32{0.9, 0.1, 0, 0}
	imposterVec = []float32{-0.1, 0, 0.9, 0.1}
)

type fakeExtractor struct {
	mu    sync.Mutex
	queue [][]float32
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []float32) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}
	return v, nil
}

func (f *fakeExtractor) Dimension() int { return 4 }

const chunkSamples = 2048 // 128 ms at 16 kHz

func loudChunk() []float32 {
	s := make([]float32, chunkSamples)
	for i := range s {
		s[i] = 0.1 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return s
}

func silentChunk() []float32 {
	return make([]float32, chunkSamples)
}

func enrollSignal() normalize.Signal {
	s := make([]float32, 32000)
	for i := range s {
		s[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return normalize.Signal{Samples: s, Rate: 16000, Channels: 1}
}

// newVerifier builds a verifier whose engine has "alice" enrolled on
// genuineVec.
func newVerifier(t *testing.T) (*stream.Verifier, *fakeExtractor) {
	t.Helper()
	store := kv.NewMemory(nil)
	t.Cleanup(func() { store.Close() })

	x := &fakeExtractor{queue: [][]float32{genuineVec}}
	n := normalize.New(normalize.Config{})
	engine := auth.NewEngine(n, x, voiceprint.NewStore(store), auth.Config{})

	if _, err := engine.Enroll(context.Background(), "alice",
		[]normalize.Signal{enrollSignal(), enrollSignal(), enrollSignal()}); err != nil {
		t.Fatalf("enroll fixture: %v", err)
	}
	return stream.NewVerifier(engine, stream.Config{}), x
}

// drive feeds chunks through the session and returns all emitted events.
func drive(t *testing.T, s *stream.Session, chunks [][]float32) []*stream.Event {
	t.Helper()
	var events []*stream.Event
	for i, c := range chunks {
		ev, err := s.Process(context.Background(), c)
		if err != nil {
			t.Fatalf("Process chunk %d: %v", i, err)
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

func TestSpeechThenSilenceEmitsDecision(t *testing.T) {
	v, _ := newVerifier(t)
	s := v.NewSession("alice")
	defer s.Close()

	// ~1s of speech followed by enough silence to close the utterance.
	var chunks [][]float32
	for range 8 {
		chunks = append(chunks, loudChunk())
	}
	for range 4 {
		chunks = append(chunks, silentChunk())
	}

	events := drive(t, s, chunks)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if !ev.Accept {
		t.Fatalf("genuine speaker rejected: score %.2f", ev.Score)
	}
	if ev.Duration < 900*time.Millisecond || ev.Duration > 1200*time.Millisecond {
		t.Fatalf("segment duration = %v, want about 1s", ev.Duration)
	}
}

func TestImposterRejected(t *testing.T) {
	v, x := newVerifier(t)
	s := v.NewSession("alice")
	defer s.Close()

	x.mu.Lock()
	x.queue = [][]float32{imposterVec}
	x.mu.Unlock()

	var chunks [][]float32
	for range 8 {
		chunks = append(chunks, loudChunk())
	}
	for range 4 {
		chunks = append(chunks, silentChunk())
	}

	events := drive(t, s, chunks)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Accept {
		t.Fatalf("imposter accepted with score %.2f", events[0].Score)
	}
}

func TestShortBurstIsDropped(t *testing.T) {
	v, x := newVerifier(t)
	s := v.NewSession("alice")
	defer s.Close()

	// A single 128 ms burst is below the minimum speech length.
	chunks := [][]float32{loudChunk()}
	for range 6 {
		chunks = append(chunks, silentChunk())
	}

	events := drive(t, s, chunks)
	if len(events) != 0 {
		t.Fatalf("got %d events for a sub-minimum burst, want 0", len(events))
	}
	x.mu.Lock()
	calls := x.calls
	x.mu.Unlock()
	if calls != 3 { // enrollment only
		t.Fatalf("extractor calls = %d, want 3 (no scoring for dropped burst)", calls)
	}
}

func TestLongSpeechForceEmits(t *testing.T) {
	v, _ := newVerifier(t)
	s := v.NewSession("alice")
	defer s.Close()

	// Continuous speech with no pause: the max speech length cuts a
	// segment without waiting for silence.
	var chunks [][]float32
	for range 40 {
		chunks = append(chunks, loudChunk())
	}

	events := drive(t, s, chunks)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 forced segment", len(events))
	}
	if d := events[0].Duration; d < 4*time.Second || d > 5*time.Second {
		t.Fatalf("forced segment duration = %v, want just over 4s", d)
	}
}

func TestBufferResetsBetweenUtterances(t *testing.T) {
	v, _ := newVerifier(t)
	s := v.NewSession("alice")
	defer s.Close()

	var chunks [][]float32
	for range 2 {
		for range 8 {
			chunks = append(chunks, loudChunk())
		}
		for range 4 {
			chunks = append(chunks, silentChunk())
		}
	}

	events := drive(t, s, chunks)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 independent utterances", len(events))
	}
	for i, ev := range events {
		if ev.Duration > 1200*time.Millisecond {
			t.Fatalf("utterance %d duration = %v; buffer leaked across segments", i, ev.Duration)
		}
	}
}

func TestProcessAfterClose(t *testing.T) {
	v, _ := newVerifier(t)
	s := v.NewSession("alice")
	s.Close()

	_, err := s.Process(context.Background(), loudChunk())
	if !errors.Is(err, stream.ErrClosed) {
		t.Fatalf("Process after Close = %v, want ErrClosed", err)
	}
}

func TestUnknownUserSurfaces(t *testing.T) {
	v, _ := newVerifier(t)
	s := v.NewSession("ghost")
	defer s.Close()

	var chunks [][]float32
	for range 8 {
		chunks = append(chunks, loudChunk())
	}
	for range 4 {
		chunks = append(chunks, silentChunk())
	}

	var got error
	for _, c := range chunks {
		if _, err := s.Process(context.Background(), c); err != nil {
			got = err
			break
		}
	}
	if !errors.Is(got, auth.ErrUnknownUser) {
		t.Fatalf("streaming for unknown user = %v, want ErrUnknownUser", got)
	}
}
