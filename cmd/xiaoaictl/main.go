package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/adapters/gist"
	"github.com/mihomelab/xiaoai-broadcast/adapters/llm"
	"github.com/mihomelab/xiaoai-broadcast/adapters/miai"
	"github.com/mihomelab/xiaoai-broadcast/adapters/news"
	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/internal/auth"
	"github.com/mihomelab/xiaoai-broadcast/internal/playback"
	"github.com/mihomelab/xiaoai-broadcast/internal/tokenstore"
	"github.com/mihomelab/xiaoai-broadcast/usecase"
)

const usageText = `usage: xiaoaictl <command> [args]

commands:
  get-token           log in with account credentials and persist the token bundle
  devices             list devices bound to the account
  say <text>          read text aloud on the active device
  play <url>          stream a media url on the active device
  volume <0-100>      set device volume (out-of-range values are clamped)
  status              poll playback status once
  play-gist           play the latest gist content (mp3 links or spoken text)
  broadcast           run the full news broadcast pipeline
  issue-token <name>  mint a control-API bearer token for xiaoaid clients
`

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx := context.Background()
	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "get-token":
		err = runGetToken(ctx, logger)
	case "devices":
		err = runDevices(ctx, logger)
	case "say":
		err = withArg(args, func(text string) error { return runSay(ctx, logger, text) })
	case "play":
		err = withArg(args, func(url string) error { return runPlay(ctx, logger, url) })
	case "volume":
		err = withArg(args, func(raw string) error { return runVolume(ctx, logger, raw) })
	case "status":
		err = runStatus(ctx, logger)
	case "play-gist":
		err = runPlayGist(ctx, logger)
	case "broadcast":
		err = runBroadcast(ctx, logger)
	case "issue-token":
		err = withArg(args, func(name string) error { return runIssueToken(logger, name) })
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

func withArg(args []string, fn func(string) error) error {
	if len(args) < 1 {
		return fmt.Errorf("missing argument")
	}
	return fn(args[0])
}

// connect restores the persisted session when possible, logs in otherwise,
// and pins the target device.
func connect(ctx context.Context, logger *zap.Logger) (*miai.Client, error) {
	client := miai.NewClient(miai.NewConfigFromEnv(), logger)
	store := tokenstore.NewFileStore("", logger)

	if bundle, err := store.Load(); err == nil {
		if _, err := client.RestoreSession(bundle); err != nil {
			return nil, err
		}
	} else {
		logger.Info("No usable token bundle, logging in with account credentials")
		if _, err := client.Login(ctx); err != nil {
			return nil, err
		}
	}

	if _, err := client.UseDevice(ctx, deviceSelector()); err != nil {
		return nil, err
	}
	return client, nil
}

// deviceSelector reads the target device from the environment, preferring a
// "Pro" model by name when nothing is configured.
func deviceSelector() miai.Selector {
	sel := miai.Selector{
		ByID:            os.Getenv("XIAOMI_DEVICE_ID"),
		ByNameSubstring: os.Getenv("XIAOMI_DEVICE_NAME"),
	}
	if sel.ByID == "" && sel.ByNameSubstring == "" {
		sel.ByNameSubstring = "pro"
	}
	return sel
}

func runGetToken(ctx context.Context, logger *zap.Logger) error {
	client := miai.NewClient(miai.NewConfigFromEnv(), logger)

	session, err := client.Login(ctx)
	if err != nil {
		return err
	}

	devices, err := client.ListDevices(ctx)
	if err != nil {
		return err
	}

	store := tokenstore.NewFileStore("", logger)
	if err := store.Save(session.Bundle(devices)); err != nil {
		return err
	}

	logger.Info("Token bundle written",
		zap.String("userId", session.UserID),
		zap.Int("devices", len(devices)))
	return nil
}

func runDevices(ctx context.Context, logger *zap.Logger) error {
	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}

	devices, err := client.ListDevices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\t%s\n", d.DeviceID, d.Name, d.Model)
	}
	return nil
}

func runSay(ctx context.Context, logger *zap.Logger, text string) error {
	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}
	return client.Speak(ctx, text)
}

func runPlay(ctx context.Context, logger *zap.Logger, url string) error {
	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}
	return client.PlayURL(ctx, url)
}

func runVolume(ctx context.Context, logger *zap.Logger, raw string) error {
	level, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("volume must be a number: %w", err)
	}

	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}
	return client.SetVolume(ctx, level)
}

func runStatus(ctx context.Context, logger *zap.Logger) error {
	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}

	status, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("playing: %v\n", status.Playing)
	if status.Duration != nil && status.Position != nil {
		fmt.Printf("position: %.0f/%.0f seconds\n", *status.Position, *status.Duration)
	}
	return nil
}

func runPlayGist(ctx context.Context, logger *zap.Logger) error {
	source, err := gist.NewClient(gist.NewConfigFromEnv(), logger)
	if err != nil {
		return err
	}

	text, err := source.Latest(ctx)
	if err != nil {
		return err
	}

	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}

	playbackService := usecase.NewPlaybackService(client, playback.Config{}, logger)
	report, err := playbackService.PlayContent(ctx, text)
	if err != nil {
		return err
	}
	return reportOutcome(report)
}

func runBroadcast(ctx context.Context, logger *zap.Logger) error {
	newsSource, err := news.NewJisuNews(news.NewJisuConfigFromEnv(), logger)
	if err != nil {
		return err
	}
	model, err := llm.NewGemini(llm.NewGeminiConfigFromEnv(), logger)
	if err != nil {
		return err
	}
	papers := news.NewArxiv(news.NewArxivConfigFromEnv(), logger)

	client, err := connect(ctx, logger)
	if err != nil {
		return err
	}

	playbackService := usecase.NewPlaybackService(client, playback.Config{}, logger)
	broadcaster := usecase.NewBroadcastService(newsSource, papers, model, playbackService, logger)

	report, err := broadcaster.Run(ctx)
	if err != nil {
		return err
	}
	return reportOutcome(report)
}

func runIssueToken(logger *zap.Logger, name string) error {
	secret, err := auth.SecretFromEnv()
	if err != nil {
		return err
	}

	token, err := auth.GenerateClientToken(secret, name)
	if err != nil {
		return err
	}

	fmt.Println(token)
	logger.Info("Control token issued", zap.String("client", name))
	return nil
}

// reportOutcome prints the per-unit run report; a run with failed units is
// still a completed run, not an error.
func reportOutcome(report *entities.RunReport) error {
	fmt.Println(report.Summary())
	for i, res := range report.Results {
		fmt.Printf("%d\t%s\t%s\t%s\n", i+1, res.State, res.Unit.Label(), res.Error)
	}
	return nil
}
