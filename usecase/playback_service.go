package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
	"github.com/mihomelab/xiaoai-broadcast/internal/content"
	"github.com/mihomelab/xiaoai-broadcast/internal/playback"
)

// PlaybackService turns arbitrary content into an ordered playback run.
type PlaybackService struct {
	orchestrator *playback.Orchestrator
	logger       *zap.Logger
}

// NewPlaybackService creates a playback service over a speaker player.
func NewPlaybackService(player repositories.SpeakerPlayer, cfg playback.Config, logger *zap.Logger) *PlaybackService {
	return &PlaybackService{
		orchestrator: playback.NewOrchestrator(player, cfg, logger),
		logger:       logger,
	}
}

// UnitsFor decides how a piece of content is played: any embedded mp3 links
// make it a media run (one unit per link, deduplicated, in first-seen
// order); otherwise the cleaned text is spoken segment by segment.
func UnitsFor(text string) []entities.PlaybackUnit {
	if urls := content.ExtractMP3URLs(text); len(urls) > 0 {
		units := make([]entities.PlaybackUnit, 0, len(urls))
		for _, u := range urls {
			units = append(units, entities.NewMediaUnit(u))
		}
		return units
	}

	segments := content.SplitSegments(content.CleanText(text))
	units := make([]entities.PlaybackUnit, 0, len(segments))
	for _, s := range segments {
		units = append(units, entities.NewTextUnit(s))
	}
	return units
}

// PlayContent plays content end to end and reports per-unit outcomes.
func (s *PlaybackService) PlayContent(ctx context.Context, text string) (*entities.RunReport, error) {
	units := UnitsFor(text)
	if len(units) == 0 {
		return nil, fmt.Errorf("no playable content")
	}

	s.logger.Info("Starting playback run",
		zap.Int("units", len(units)),
		zap.String("kind", string(units[0].Kind)))
	return s.orchestrator.Run(ctx, units), nil
}
