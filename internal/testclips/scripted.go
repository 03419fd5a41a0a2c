package testclips

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hooplab/shotlog/internal/adapters/video"
	"github.com/hooplab/shotlog/internal/domain/detect"
	"github.com/hooplab/shotlog/internal/domain/model"
)

// Scripted frame dimensions and detection box geometry.
const (
	frameWidth  = 1280
	frameHeight = 720
	boxEdgePx   = 48 // detection box edge in pixels
)

// Library resolves clip ids to scripted frame sources. Implements
// video.Opener.
type Library struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

// NewLibrary creates an empty clip library.
func NewLibrary() *Library {
	return &Library{clips: make(map[string]*Clip)}
}

// Add registers a clip under its id.
func (l *Library) Add(c *Clip) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips[c.ID] = c
}

// Clip returns a registered clip by id.
func (l *Library) Clip(id string) (*Clip, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.clips[id]
	return c, ok
}

// Open resolves a clip id to a scripted frame source.
func (l *Library) Open(_ context.Context, clipID string) (video.Source, error) {
	c, ok := l.Clip(clipID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown clip %q", video.ErrOpenSource, clipID)
	}
	return &scriptedSource{clip: c}, nil
}

// annotation is the payload a scripted frame carries in place of pixels.
// The scripted detector decodes it back into a detection, which keeps the
// detector stateless and shareable across clips.
type annotation struct {
	Ball *Sample `json:"ball,omitempty"`
}

// scriptedSource serves frames of one scripted clip. Implements
// video.Source.
type scriptedSource struct {
	clip   *Clip
	mu     sync.Mutex
	closed bool
}

func (s *scriptedSource) FrameAt(_ context.Context, ts float64) (video.Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return video.Frame{}, video.ErrSourceClosed
	}
	if ts < 0 || ts > s.clip.Duration {
		return video.Frame{}, fmt.Errorf("%w: t=%v of %v", video.ErrOutOfRange, ts, s.clip.Duration)
	}

	index := int(ts*s.clip.FPS + 0.5)
	snapped := float64(index) / s.clip.FPS

	var ann annotation
	if sample, ok := s.clip.SampleNear(snapped); ok {
		ann.Ball = &sample
	}
	pixels, err := json.Marshal(ann)
	if err != nil {
		return video.Frame{}, fmt.Errorf("%w: %w", video.ErrSeekFailed, err)
	}
	return video.Frame{
		Timestamp: snapped,
		Index:     index,
		Width:     frameWidth,
		Height:    frameHeight,
		Pixels:    pixels,
	}, nil
}

func (s *scriptedSource) Duration() float64 {
	return s.clip.Duration
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Detector decodes scripted frame annotations into detections. Implements
// detect.Source.
type Detector struct{}

// NewDetector creates a scripted detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Loader returns a detect.Loader that yields a scripted detector.
func Loader() detect.Loader {
	return detect.LoaderFunc(func(_ context.Context) (detect.Source, error) {
		return NewDetector(), nil
	})
}

// Detect decodes the frame's annotation payload.
func (d *Detector) Detect(_ context.Context, frame video.Frame) ([]model.Detection, error) {
	if len(frame.Pixels) == 0 {
		return nil, nil
	}
	var ann annotation
	if err := json.Unmarshal(frame.Pixels, &ann); err != nil {
		return nil, fmt.Errorf("%w: %w", detect.ErrDetect, err)
	}
	if ann.Ball == nil {
		return nil, nil
	}
	cx := ann.Ball.X * frameWidth
	cy := ann.Ball.Y * frameHeight
	return []model.Detection{{
		Label: "sports ball",
		Score: ann.Ball.Confidence,
		Box: [4]float64{
			cx - boxEdgePx/2,
			cy - boxEdgePx/2,
			boxEdgePx,
			boxEdgePx,
		},
	}}, nil
}

// Close is a no-op for the scripted detector.
func (d *Detector) Close() error {
	return nil
}
