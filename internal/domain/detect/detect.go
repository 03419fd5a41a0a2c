// Package detect turns raw detector output into ball observations.
//
// The object detector itself stays behind the Source interface: the
// pipeline never inspects pixels or model internals, it only consumes
// labeled boxes with scores.
package detect

import (
	"context"
	"errors"
	"strings"

	"github.com/hooplab/shotlog/internal/adapters/video"
	"github.com/hooplab/shotlog/internal/domain/model"
)

// Sentinel error kinds for this package.
var (
	ErrDetectorLoad = errors.New("detector load failed")
	ErrDetect       = errors.New("detection failed")
)

// Source is the capability boundary to the external object detector.
type Source interface {
	// Detect analyzes a frame and returns labeled bounding boxes.
	// Returns an empty slice when nothing is detected.
	Detect(ctx context.Context, frame video.Frame) ([]model.Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Loader initializes a Source asynchronously. A load failure is fatal to
// pipeline construction.
type Loader interface {
	Load(ctx context.Context) (Source, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Source, error)

func (f LoaderFunc) Load(ctx context.Context) (Source, error) {
	return f(ctx)
}

// defaultBallLabels is the vocabulary of ball-like detector classes.
var defaultBallLabels = []string{"ball", "sports ball", "sports-ball", "basketball"}

// Extractor selects the best ball-like detection of a frame and converts
// it to a court-normalized position. It is a pure function of its inputs;
// detector failures are the caller's concern.
type Extractor struct {
	threshold  float64
	ballLabels map[string]struct{}
}

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithConfidenceThreshold sets the minimum detector score for a detection
// to qualify as a ball observation.
func WithConfidenceThreshold(threshold float64) Option {
	return func(e *Extractor) {
		if threshold >= 0 && threshold <= 1 {
			e.threshold = threshold
		}
	}
}

// WithBallLabels replaces the ball-like label vocabulary.
func WithBallLabels(labels []string) Option {
	return func(e *Extractor) {
		if len(labels) == 0 {
			return
		}
		e.ballLabels = make(map[string]struct{}, len(labels))
		for _, l := range labels {
			e.ballLabels[normalizeLabel(l)] = struct{}{}
		}
	}
}

// NewExtractor creates an Extractor with the default vocabulary and a
// 0.35 score threshold.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{threshold: 0.35}
	WithBallLabels(defaultBallLabels)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks the highest-scoring ball-like detection above the threshold
// and converts its box center to normalized coordinates. Returns nil when
// no detection survives. frameW and frameH are the source pixel dimensions;
// when either is zero the boxes are assumed to be normalized already.
func (e *Extractor) Extract(detections []model.Detection, ts float64, frameIndex, frameW, frameH int) *model.BallPosition {
	var best *model.Detection
	for i := range detections {
		d := &detections[i]
		if d.Score < e.threshold {
			continue
		}
		if _, ok := e.ballLabels[normalizeLabel(d.Label)]; !ok {
			continue
		}
		if best == nil || d.Score > best.Score {
			best = d
		}
	}
	if best == nil {
		return nil
	}

	cx := best.Box[0] + best.Box[2]/2
	cy := best.Box[1] + best.Box[3]/2
	if frameW > 0 && frameH > 0 {
		cx /= float64(frameW)
		cy /= float64(frameH)
	}

	return &model.BallPosition{
		X:          clamp01(cx),
		Y:          clamp01(cy),
		Timestamp:  ts,
		Confidence: best.Score,
		FrameIndex: frameIndex,
	}
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
