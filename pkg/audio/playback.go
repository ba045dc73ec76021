package audio

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Speaker plays PCM chunks through the default output device. Play never
// blocks for the duration of playback; chunks queue into an internal
// buffer that an oto player drains.
type Speaker struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
}

// OpenSpeaker initializes the playback backend. The buffer size trades
// latency for glitch resistance; 100ms works well for conversational
// turn-taking.
func OpenSpeaker(sampleRate, channels int) (*Speaker, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   sampleRate / 5, // ~100ms of mono s16
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("audio: init playback context: %w", err)
	}
	<-ready

	s := &Speaker{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, sampleRate*4), // two seconds of mono s16
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// wavHeaderSize is the byte length of a canonical RIFF/WAVE header.
const wavHeaderSize = 44

// stripWAVHeader removes a RIFF/WAVE header when one is present. The
// channel sends each chunk as a self-contained WAV file, but the player
// wants the bare PCM.
func stripWAVHeader(data []byte) []byte {
	if len(data) >= wavHeaderSize &&
		bytes.HasPrefix(data, []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE")) {
		return data[wavHeaderSize:]
	}
	return data
}

// Play queues one chunk for playback and returns immediately. The player
// is created lazily on the first chunk.
func (s *Speaker) Play(data []byte) {
	pcm := stripWAVHeader(data)
	if len(pcm) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Pending reports whether queued audio is still waiting to play. Session
// logic uses it to mute the microphone while the assistant is speaking.
func (s *Speaker) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) > 0
}

// Read implements io.Reader for the oto player, which pulls PCM from the
// queue. Silence is returned after Close so oto can drain cleanly.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush discards queued audio and stops the current player so the next
// chunk starts fresh. Used when the user interrupts the assistant.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	if s.player == nil || !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	player := s.player
	s.player = nil
	s.mu.Unlock()

	player.Pause()
	player.Reset()
	player.Close()
}

// Close stops playback and wakes any blocked reader.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()

	if s.player != nil {
		s.player.Close()
	}
	return nil
}
