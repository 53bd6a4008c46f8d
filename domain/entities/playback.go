package entities

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// UnitKind distinguishes the two playback unit flavors.
type UnitKind string

const (
	UnitKindText  UnitKind = "text"
	UnitKindMedia UnitKind = "media"
)

// PlaybackUnit is one atomic item in an ordered playback run: either a text
// segment spoken via TTS or a media URL streamed by the device.
type PlaybackUnit struct {
	Kind UnitKind `json:"kind"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
}

// NewTextUnit creates a TTS playback unit.
func NewTextUnit(text string) PlaybackUnit {
	return PlaybackUnit{Kind: UnitKindText, Text: text}
}

// NewMediaUnit creates a media URL playback unit.
func NewMediaUnit(url string) PlaybackUnit {
	return PlaybackUnit{Kind: UnitKindMedia, URL: url}
}

// Label returns a short human-readable identifier for logs.
func (u PlaybackUnit) Label() string {
	if u.Kind == UnitKindMedia {
		return u.URL
	}
	if utf8.RuneCountInString(u.Text) <= 20 {
		return u.Text
	}
	runes := []rune(u.Text)
	return string(runes[:20]) + "..."
}

// UnitState is the lifecycle state of a playback unit within a run.
type UnitState string

const (
	UnitStateQueued   UnitState = "queued"
	UnitStateSent     UnitState = "sent"
	UnitStatePolling  UnitState = "polling"
	UnitStateDone     UnitState = "done"
	UnitStateTimedOut UnitState = "timed_out"
	UnitStateFailed   UnitState = "failed"
)

// Settled reports whether the state is terminal.
func (s UnitState) Settled() bool {
	return s == UnitStateDone || s == UnitStateTimedOut || s == UnitStateFailed
}

// PlaybackStatus is one status poll snapshot. It is a noisy, eventually
// consistent signal; duration and position are absent when the device does
// not report playback detail.
type PlaybackStatus struct {
	Playing  bool     `json:"playing"`
	Duration *float64 `json:"duration,omitempty"`
	Position *float64 `json:"position,omitempty"`
}

// UnitResult records how one unit settled.
type UnitResult struct {
	Unit    PlaybackUnit  `json:"unit"`
	State   UnitState     `json:"state"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// RunReport collects per-unit outcomes for a whole playback run. A failed or
// wedged unit never hides the fate of the others.
type RunReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []UnitResult `json:"results"`
}

// Count returns how many units settled in the given state.
func (r *RunReport) Count(state UnitState) int {
	n := 0
	for _, res := range r.Results {
		if res.State == state {
			n++
		}
	}
	return n
}

// Summary renders a one-line digest for logs.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("%d units: %d done, %d timed out, %d failed",
		len(r.Results),
		r.Count(UnitStateDone),
		r.Count(UnitStateTimedOut),
		r.Count(UnitStateFailed))
}
