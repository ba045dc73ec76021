// Package audio provides microphone capture and speaker playback for a
// voice session. Capture and playback are both 16-bit little-endian PCM.
package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

const (
	// DefaultSampleRate matches what the voice channel expects for
	// linear16 input and produces for output.
	DefaultSampleRate = 24000
	DefaultChannels   = 1

	// Encoding is the wire name for the PCM format used throughout.
	Encoding = "linear16"
)

// Microphone captures PCM frames from the default input device. Read
// blocks until samples are available and returns ErrCaptureClosed after
// Close.
type Microphone struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// OpenMicrophone initializes the capture backend and starts the default
// input device. Failure here is expected on headless hosts; callers treat
// it as "no microphone" rather than fatal.
func OpenMicrophone(sampleRate, channels int) (*Microphone, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init capture context: %w", err)
	}

	m := &Microphone{
		ctx: ctx,
		buf: make([]byte, 0, sampleRate*2), // one second of mono s16
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			m.mu.Lock()
			if !m.closed {
				m.buf = append(m.buf, samples...)
			}
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: start capture device: %w", err)
	}

	m.device = device
	return m, nil
}

// ErrCaptureClosed is returned by Read once the microphone is closed.
var ErrCaptureClosed = fmt.Errorf("audio: capture closed")

// Read fills p with buffered PCM, blocking while the buffer is empty.
func (m *Microphone) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed && len(m.buf) == 0 {
		return 0, ErrCaptureClosed
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// Close stops the device and wakes any blocked Read.
func (m *Microphone) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()

	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
	}
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx.Free()
	}
	return nil
}
