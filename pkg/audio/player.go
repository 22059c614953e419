package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

// Global audio context singleton
var (
	globalAudioCtx     *oto.Context
	globalAudioCtxOnce sync.Once
	audioCtxErr        error
)

// Ringtone is a decoded 16-bit PCM WAV sound
type Ringtone struct {
	format wavFormat
	pcm    []byte
}

// wavFormat holds WAV file format information
type wavFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Duration returns the length of one play-through
func (r *Ringtone) Duration() time.Duration {
	bytesPerSecond := r.format.SampleRate * r.format.Channels * r.format.BitDepth / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(len(r.pcm)) * time.Second / time.Duration(bytesPerSecond)
}

// Load reads a WAV file from path, or decodes fallback when path is empty
func Load(path string, fallback []byte) (*Ringtone, error) {
	data := fallback
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ringtone: %w", err)
		}
	}
	return DecodeWAV(data)
}

// DecodeWAV parses a WAV file into a Ringtone
func DecodeWAV(data []byte) (*Ringtone, error) {
	format, pcm, err := parseWAV(data)
	if err != nil {
		return nil, err
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, need 16-bit PCM", format.BitDepth)
	}
	return &Ringtone{format: *format, pcm: pcm}, nil
}

// initAudioContext initializes the global audio context once
func initAudioContext(format wavFormat) error {
	globalAudioCtxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			audioCtxErr = fmt.Errorf("init audio context: %w", err)
			return
		}

		// Wait for the hardware audio devices to be ready
		<-readyChan
		globalAudioCtx = ctx
	})
	return audioCtxErr
}

// Player manages one ringtone playback with cancellation support
type Player struct {
	stopChan chan struct{}
	done     chan struct{}
	stopped  bool
	mu       sync.Mutex
}

func newPlayer() *Player {
	return &Player{
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Stop stops the playback. Safe to call more than once.
func (p *Player) Stop() {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stopped {
		p.stopped = true
		close(p.stopChan)
	}
}

// Done is closed once playback has ended
func (p *Player) Done() <-chan struct{} {
	return p.done
}

func (p *Player) playLoop(ringtone *Ringtone, volume float64, logger zerolog.Logger) {
	defer close(p.done)

	// Loop the ringtone until stopped
	for {
		player := globalAudioCtx.NewPlayer(bytes.NewReader(ringtone.pcm))
		player.SetVolume(volume)
		player.Play()

		for player.IsPlaying() {
			select {
			case <-p.stopChan:
				player.Pause()
				if err := player.Close(); err != nil {
					logger.Warn().Err(err).Msg("failed to close audio player")
				}
				return
			case <-time.After(10 * time.Millisecond):
			}
		}

		if err := player.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close audio player")
		}

		select {
		case <-p.stopChan:
			return
		default:
		}
	}
}

// Ringer plays the ringtone at a fixed volume for a bounded time
type Ringer struct {
	ringtone *Ringtone
	volume   float64
	length   time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	current *Player
}

// NewRinger creates a Ringer
func NewRinger(ringtone *Ringtone, volume float64, length time.Duration, logger zerolog.Logger) *Ringer {
	return &Ringer{
		ringtone: ringtone,
		volume:   volume,
		length:   length,
		logger:   logger.With().Str("component", "ringer").Logger(),
	}
}

// Ring starts the ringtone, replacing any ring still in progress. Playback
// stops by itself after the configured length.
func (r *Ringer) Ring() error {
	if err := initAudioContext(r.ringtone.format); err != nil {
		return err
	}
	if globalAudioCtx == nil {
		return errors.New("audio context not ready")
	}

	p := newPlayer()

	r.mu.Lock()
	r.current.Stop()
	r.current = p
	r.mu.Unlock()

	go p.playLoop(r.ringtone, r.volume, r.logger)
	time.AfterFunc(r.length, p.Stop)

	r.logger.Debug().Float64("volume", r.volume).Dur("length", r.length).Msg("[RING] started")
	return nil
}

// Stop silences the current ring, if any
func (r *Ringer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Stop()
	r.current = nil
}

// parseWAV parses a WAV file and returns the format and audio data
func parseWAV(data []byte) (*wavFormat, []byte, error) {
	reader := bytes.NewReader(data)

	header := make([]byte, 12)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, nil, errors.New("not a RIFF/WAVE file")
	}

	var format *wavFormat

	// Read chunks
	for {
		chunkID := make([]byte, 4)
		if _, err := io.ReadFull(reader, chunkID); err != nil {
			if err == io.EOF {
				return nil, nil, errors.New("wav file has no data chunk")
			}
			return nil, nil, err
		}

		var chunkSize uint32
		if err := binary.Read(reader, binary.LittleEndian, &chunkSize); err != nil {
			return nil, nil, err
		}

		switch string(chunkID) {
		case "fmt ":
			if chunkSize < 16 {
				return nil, nil, fmt.Errorf("fmt chunk too short: %d", chunkSize)
			}
			var fmtChunk struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(reader, binary.LittleEndian, &fmtChunk); err != nil {
				return nil, nil, err
			}
			format = &wavFormat{
				SampleRate: int(fmtChunk.SampleRate),
				Channels:   int(fmtChunk.NumChannels),
				BitDepth:   int(fmtChunk.BitsPerSample),
			}

			// Skip any extra format bytes
			if remaining := int64(chunkSize) - 16; remaining > 0 {
				if _, err := reader.Seek(remaining, io.SeekCurrent); err != nil {
					return nil, nil, err
				}
			}
		case "data":
			if format == nil {
				return nil, nil, errors.New("wav data chunk before fmt chunk")
			}
			audioData := make([]byte, chunkSize)
			if _, err := io.ReadFull(reader, audioData); err != nil {
				return nil, nil, fmt.Errorf("read wav data: %w", err)
			}
			return format, audioData, nil
		default:
			// Skip unknown chunk
			if _, err := reader.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, nil, err
			}
		}
	}
}
