package testclips

import (
	"crypto/rand"
	"math"
	"math/big"
)

// Scripted arc geometry, in court-normalized coordinates. Speeds stay under
// the tracker's point-distance gate even at the coarse scan rate, and a make
// truncates just past the apex while the ball still heads into the goal
// area, the way a real ball vanishes into the hoop.
const (
	shotAirTime = 2.0 // seconds from launch to landing
	makeTruncAt = 1.1 // seconds after launch when a made ball disappears
	makeLaunchX = 0.08
	makeSpeedX  = 0.23
	makeLaunchY = 0.7
	makeApexY   = 0.38
	missLaunchX = 0.2
	missLandX   = 0.75
	missLaunchY = 0.7
	missApexY   = 0.42
	missLandY   = 0.78
)

// Detection scripting constants.
const (
	randomFloatDivisor = 1000000
	baseConfidence     = 0.82
	confidenceJitter   = 0.08
	positionJitter     = 0.006
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// ShotProfile is the ground truth for one generated shot attempt.
type ShotProfile struct {
	Start float64 // launch time, seconds from clip start
	Make  bool
}

// Sample is one scripted ball annotation.
type Sample struct {
	Timestamp  float64 `json:"ts"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"conf"`
}

// Clip is a scripted test clip: its ground truth plus the per-frame ball
// samples a detector would report.
type Clip struct {
	ID       string
	Duration float64
	FPS      float64
	Shots    []ShotProfile
	Samples  []Sample
}

// NewClip generates a scripted clip from the given shot profiles. Samples
// are emitted at the clip frame rate; frames outside any shot's air time
// carry no ball.
func NewClip(id string, duration, fps float64, shots []ShotProfile, noisy bool) *Clip {
	c := &Clip{ID: id, Duration: duration, FPS: fps, Shots: shots}
	frames := int(duration*fps) + 1
	for i := 0; i < frames; i++ {
		ts := float64(i) / fps
		if s, ok := c.sampleAt(ts, noisy); ok {
			c.Samples = append(c.Samples, s)
		}
	}
	return c
}

// SampleNear returns the sample whose timestamp is closest to ts, within
// half a frame interval.
func (c *Clip) SampleNear(ts float64) (Sample, bool) {
	half := 1 / (2 * c.FPS)
	for i := range c.Samples {
		d := c.Samples[i].Timestamp - ts
		if d < 0 {
			d = -d
		}
		if d <= half {
			return c.Samples[i], true
		}
	}
	return Sample{}, false
}

// sampleAt computes the scripted ball position at ts, if a shot is in the
// air then.
func (c *Clip) sampleAt(ts float64, noisy bool) (Sample, bool) {
	for _, shot := range c.Shots {
		e := ts - shot.Start
		if e < 0 || e > airTime(shot) {
			continue
		}
		x, y := arcPosition(shot, e)
		conf := baseConfidence
		if noisy {
			x += (getRandomFloat() - 0.5) * 2 * positionJitter
			y += (getRandomFloat() - 0.5) * 2 * positionJitter
			conf += (getRandomFloat() - 0.5) * 2 * confidenceJitter
		}
		return Sample{
			Timestamp:  ts,
			X:          clamp01(x),
			Y:          clamp01(y),
			Confidence: clamp01(conf),
		}, true
	}
	return Sample{}, false
}

// airTime is how long the ball stays visible for a profile. A made ball
// disappears into the hoop; a missed one is tracked to its landing.
func airTime(shot ShotProfile) float64 {
	if shot.Make {
		return makeTruncAt
	}
	return shotAirTime
}

// arcPosition evaluates the shot parabola at elapsed time e. X moves
// linearly; Y follows a parabola through the apex at mid flight.
func arcPosition(shot ShotProfile, e float64) (x, y float64) {
	half := shotAirTime / 2
	if shot.Make {
		x = makeLaunchX + makeSpeedX*e
		a := (makeLaunchY - makeApexY) / (half * half)
		y = a*(e-half)*(e-half) + makeApexY
		return x, y
	}
	x = missLaunchX + (missLandX-missLaunchX)*e/shotAirTime
	a := (missLaunchY - 2*missApexY + missLandY) / (2 * half * half)
	b := (missLandY - missLaunchY) / shotAirTime
	y = a*(e-half)*(e-half) + b*(e-half) + missApexY
	return x, y
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
