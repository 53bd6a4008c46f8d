package playback

import (
	"context"
	"math"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
)

const (
	// defaultMinWait guards against mistaking "not yet started" for
	// "already finished" right after a play command is acknowledged.
	defaultMinWait = 5 * time.Second

	// defaultPollInterval is the sleep between status polls.
	defaultPollInterval = 5 * time.Second

	// defaultMaxWait is the hard per-unit ceiling. Orchestration proceeds
	// past it so a wedged device never blocks the rest of a run.
	defaultMaxWait = 1800 * time.Second

	// nearEndWindowSeconds treats "nearly finished" as finished to absorb
	// polling granularity.
	nearEndWindowSeconds = 2.0

	// ttsCharsPerSecond drives the pacing estimate for text segments. The
	// speaker reports no duration for TTS playback, so the wait is a
	// heuristic derived from segment length, not a measurement.
	ttsCharsPerSecond = 5.5
)

// Config tunes the orchestrator wait loops. Zero values take the defaults.
type Config struct {
	MinWait      time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Orchestrator plays an ordered sequence of units to (near-)completion, one
// at a time. The device can only play a single stream, so a run is strictly
// sequential: unit i+1 is never sent before unit i settles.
type Orchestrator struct {
	player repositories.SpeakerPlayer
	cfg    Config
	clock  Clock
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator over a speaker player.
func NewOrchestrator(player repositories.SpeakerPlayer, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MinWait == 0 {
		cfg.MinWait = defaultMinWait
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = defaultMaxWait
	}

	return &Orchestrator{
		player: player,
		cfg:    cfg,
		clock:  NewClock(),
		logger: logger,
	}
}

// Run plays units in order and reports how each settled. A failed send or a
// timed-out unit never aborts the run; orchestration always advances.
func (o *Orchestrator) Run(ctx context.Context, units []entities.PlaybackUnit) *entities.RunReport {
	report := &entities.RunReport{StartedAt: o.clock.Now()}

	for i, unit := range units {
		o.logger.Info("Playing unit",
			zap.Int("index", i+1),
			zap.Int("total", len(units)),
			zap.String("kind", string(unit.Kind)),
			zap.String("unit", unit.Label()))

		result := o.playUnit(ctx, unit, i == len(units)-1)
		report.Results = append(report.Results, result)

		if result.State != entities.UnitStateDone {
			o.logger.Warn("Unit settled abnormally",
				zap.Int("index", i+1),
				zap.String("state", string(result.State)),
				zap.String("error", result.Error))
		}
	}

	report.FinishedAt = o.clock.Now()
	o.logger.Info("Playback run finished", zap.String("summary", report.Summary()))
	return report
}

// playUnit walks one unit through queued -> sent -> polling -> settled.
func (o *Orchestrator) playUnit(ctx context.Context, unit entities.PlaybackUnit, last bool) entities.UnitResult {
	result := entities.UnitResult{Unit: unit, State: entities.UnitStateQueued}
	start := o.clock.Now()

	var err error
	switch unit.Kind {
	case entities.UnitKindMedia:
		err = o.player.PlayURL(ctx, unit.URL)
	default:
		err = o.player.Speak(ctx, unit.Text)
	}
	if err != nil {
		result.State = entities.UnitStateFailed
		result.Error = err.Error()
		result.Elapsed = o.clock.Now().Sub(start)
		return result
	}
	result.State = entities.UnitStateSent

	if unit.Kind == entities.UnitKindMedia {
		result.State = o.waitForCompletion(ctx, start, &result)
	} else {
		// TTS playback exposes no duration to poll, so the wait is the
		// length-based pacing estimate. The final segment needs no pacing:
		// there is nothing left to advance to.
		if !last {
			if sleepErr := o.clock.Sleep(ctx, PaceFor(unit.Text)); sleepErr != nil {
				result.State = entities.UnitStateFailed
				result.Error = sleepErr.Error()
				result.Elapsed = o.clock.Now().Sub(start)
				return result
			}
		}
		result.State = entities.UnitStateDone
	}

	result.Elapsed = o.clock.Now().Sub(start)
	return result
}

// waitForCompletion polls device status until playback settles. Poll
// failures are swallowed and retried on the next interval; a flapping status
// endpoint must never abort playback.
func (o *Orchestrator) waitForCompletion(ctx context.Context, start time.Time, result *entities.UnitResult) entities.UnitState {
	result.State = entities.UnitStatePolling

	for {
		elapsed := o.clock.Now().Sub(start)
		if elapsed >= o.cfg.MaxWait {
			o.logger.Warn("Unit reached wait ceiling, moving on",
				zap.Duration("elapsed", elapsed))
			return entities.UnitStateTimedOut
		}

		status, err := o.player.GetStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				result.Error = ctx.Err().Error()
				return entities.UnitStateFailed
			}
			o.logger.Debug("Status poll failed, retrying", zap.Error(err))
			if sleepErr := o.clock.Sleep(ctx, o.cfg.PollInterval); sleepErr != nil {
				result.Error = sleepErr.Error()
				return entities.UnitStateFailed
			}
			continue
		}

		// Too early to judge: "not playing" right after the ack usually
		// means the stream has not started yet.
		if elapsed < o.cfg.MinWait {
			if sleepErr := o.clock.Sleep(ctx, o.cfg.PollInterval); sleepErr != nil {
				result.Error = sleepErr.Error()
				return entities.UnitStateFailed
			}
			continue
		}

		if Classify(status) {
			return entities.UnitStateDone
		}

		if sleepErr := o.clock.Sleep(ctx, o.cfg.PollInterval); sleepErr != nil {
			result.Error = sleepErr.Error()
			return entities.UnitStateFailed
		}
	}
}

// Classify reports whether a status poll counts as finished: not playing, or
// playing with no more than the near-end window remaining.
func Classify(status entities.PlaybackStatus) bool {
	if !status.Playing {
		return true
	}
	if status.Duration != nil && *status.Duration > 0 &&
		status.Position != nil && *status.Position >= 0 {
		return *status.Duration-*status.Position <= nearEndWindowSeconds
	}
	return false
}

// PaceFor estimates how long the device will take to speak a text segment:
// one second per 5.5 characters, never less than one second. An explicit
// heuristic, not a measurement.
func PaceFor(text string) time.Duration {
	secs := math.Round(float64(utf8.RuneCountInString(text)) / ttsCharsPerSecond)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
