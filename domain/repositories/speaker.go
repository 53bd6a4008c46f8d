package repositories

import (
	"context"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// SpeakerPlayer is the typed command surface of the remote speaker, scoped to
// an established session and active device. Speak and PlayURL acknowledge
// receipt only; playback itself is asynchronous on the device.
type SpeakerPlayer interface {
	Speak(ctx context.Context, text string) error
	PlayURL(ctx context.Context, url string) error
	SetVolume(ctx context.Context, level int) error
	GetStatus(ctx context.Context) (entities.PlaybackStatus, error)
}

// TokenStore persists the token bundle between runs.
type TokenStore interface {
	Load() (*entities.TokenBundle, error)
	Save(bundle *entities.TokenBundle) error
}
