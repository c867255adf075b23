package audio

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// decodeFunc is the shape shared by the beep decoders.
type decodeFunc func(r io.Reader) (beep.StreamSeekCloser, beep.Format, error)

// decoders maps a lower-case file extension to its decoder.
var decoders = map[string]decodeFunc{
	".wav": wav.Decode,
	".ogg": func(r io.Reader) (beep.StreamSeekCloser, beep.Format, error) {
		return vorbis.Decode(io.NopCloser(r))
	},
	".mp3": func(r io.Reader) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(io.NopCloser(r))
	},
}

// speakerLatency is the speaker buffer length. Chimes are short, so keep it low.
const speakerLatency = 100 * time.Millisecond

// Player plays chime files through the system speaker. Decoded files are
// cached and re-decoded when their modification time changes.
type Player struct {
	logger *slog.Logger

	mu         sync.Mutex
	volume     float64 // 0..1
	speakerOn  bool
	sampleRate beep.SampleRate
	sounds     map[string]decodedSound
}

type decodedSound struct {
	buffer  *beep.Buffer
	modTime time.Time
}

// NewPlayer creates a player at full volume. The speaker is opened on the
// first decode.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		logger: logger,
		volume: 1.0,
		sounds: make(map[string]decodedSound),
	}
}

// SetVolume clamps volume to 0..1.
func (p *Player) SetVolume(volume float64) {
	volume = math.Max(0, math.Min(1, volume))

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Play queues path on the speaker and returns without waiting for it to
// finish. An empty path is a no-op.
func (p *Player) Play(path string) error {
	if path == "" {
		return nil
	}
	buf, err := p.buffer(expandHome(path))
	if err != nil {
		return err
	}

	p.mu.Lock()
	volume, rate := p.volume, p.sampleRate
	p.mu.Unlock()

	speaker.Play(streamerFor(buf, rate, volume))
	return nil
}

// Preload decodes path ahead of its first chime.
func (p *Player) Preload(path string) error {
	if path == "" {
		return nil
	}
	_, err := p.buffer(expandHome(path))
	return err
}

// Close stops playback, closes the speaker and drops cached sounds.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.speakerOn {
		speaker.Close()
		p.speakerOn = false
	}
	p.sounds = make(map[string]decodedSound)
}

func (p *Player) buffer(path string) (*beep.Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("sound %s: %w", path, err)
	}

	p.mu.Lock()
	cached, ok := p.sounds[path]
	p.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.buffer, nil
	}

	buf, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if err := p.openSpeaker(buf.Format().SampleRate); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sounds[path] = decodedSound{buffer: buf, modTime: info.ModTime()}
	p.mu.Unlock()
	p.logger.Debug("decoded sound", "path", path, "reload", ok)
	return buf, nil
}

// openSpeaker initialises the speaker at the rate of the first sound
// decoded. Later sounds are resampled to it.
func (p *Player) openSpeaker(rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.speakerOn {
		return nil
	}
	if err := speaker.Init(rate, rate.N(speakerLatency)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	p.speakerOn = true
	p.sampleRate = rate
	p.logger.Debug("speaker initialized", "sample_rate", rate)
	return nil
}

// decodeFile reads the whole file into memory.
func decodeFile(path string) (*beep.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("sound %s: unsupported format %q", path, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sound %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stream, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("sound %s: decode: %w", path, err)
	}
	defer func() { _ = stream.Close() }()

	buf := beep.NewBuffer(format)
	buf.Append(stream)
	return buf, nil
}

// streamerFor resamples buf to the speaker rate and applies volume.
func streamerFor(buf *beep.Buffer, rate beep.SampleRate, volume float64) beep.Streamer {
	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if from := buf.Format().SampleRate; from != rate {
		s = beep.Resample(4, from, rate, s)
	}
	if volume >= 1 {
		return s
	}
	return &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   volumeExponent(volume),
		Silent:   volume == 0,
	}
}

// volumeExponent converts a linear volume to the base-2 exponent
// effects.Volume expects: 0.5 is -1, 0.25 is -2.
func volumeExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
