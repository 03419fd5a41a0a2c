// Package video defines the frame source boundary of the analysis pipeline.
//
// Decoding, codecs and seeking mechanics live behind the Source interface;
// the pipeline only ever asks for "the frame nearest this timestamp". Seek
// latency is a suspension point, so every call takes a context.
package video

import (
	"context"
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrOpenSource   = errors.New("open frame source failed")
	ErrSeekFailed   = errors.New("seek failed")
	ErrOutOfRange   = errors.New("timestamp out of range")
	ErrSourceClosed = errors.New("frame source closed")
)

// Frame is one decoded frame handed to the detector. Pixels stays opaque to
// the pipeline; only the detector adapter interprets it.
type Frame struct {
	Timestamp float64 // seconds from clip start
	Index     int     // frame index at the source frame rate
	Width     int     // source width in pixels
	Height    int     // source height in pixels
	Pixels    []byte
}

// Source supplies frames of one clip by timestamp.
type Source interface {
	// FrameAt seeks to the frame nearest ts and returns it.
	FrameAt(ctx context.Context, ts float64) (Frame, error)

	// Duration returns the clip duration in seconds.
	Duration() float64

	// Close releases decoder resources.
	Close() error
}

// Opener resolves a clip identifier to a Source.
type Opener interface {
	Open(ctx context.Context, clipID string) (Source, error)
}
