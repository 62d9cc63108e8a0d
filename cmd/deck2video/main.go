// main package for the deck2video CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/slidecast/deck2video/internal/avatar"
	"github.com/slidecast/deck2video/internal/blobstore"
	"github.com/slidecast/deck2video/internal/config"
	"github.com/slidecast/deck2video/internal/core"
	"github.com/slidecast/deck2video/internal/deck"
	"github.com/slidecast/deck2video/internal/httpretry"
	"github.com/slidecast/deck2video/internal/narration"
	"github.com/slidecast/deck2video/internal/pipeline"
	"github.com/slidecast/deck2video/internal/rasterize"
)

// ErrDeckIDRequired indicates the -deck flag was not provided.
var ErrDeckIDRequired = errors.New("deck id is required (-deck)")

type cliArgs struct {
	deckID    string
	title     string
	maxSlides int
}

func parseArgs() (cliArgs, error) {
	deckID := flag.String("deck", "", "blob store id of the deck to convert")
	title := flag.String("title", "", "video title (defaults to a title derived from the deck id)")
	maxSlides := flag.Int("max-slides", 0, "maximum number of slides to process (0 = all)")
	flag.Parse()

	if *deckID == "" {
		return cliArgs{}, ErrDeckIDRequired
	}

	return cliArgs{
		deckID:    *deckID,
		title:     *title,
		maxSlides: *maxSlides,
	}, nil
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "deck2video.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// buildPipeline wires the pipeline stages from the loaded configuration.
func buildPipeline(cfg *config.Config, log *logger.Logger) (*pipeline.Pipeline, func(), error) {
	natsConnection, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := blobstore.New(jetstreamContext, cfg.DeckStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	settings := cfg.Settings

	api := httpretry.New(settings.RetryAttempts, settings.RetryBaseDelay(), log)

	avatarClient := avatar.NewClient(api, cfg.AvatarAPIURL, cfg.AvatarUploadURL, cfg.AvatarAPIKey, log)
	poller := avatar.NewPoller(avatarClient, settings.PollInterval(), settings.PollTimeout(), log)
	videoService := avatar.NewService(avatarClient, poller, avatar.JobOptions{
		AvatarID: cfg.AvatarID,
		VoiceID:  cfg.VoiceID,
		Width:    settings.VideoWidth,
		Height:   settings.VideoHeight,
		Scale:    settings.AvatarScale,
		OffsetX:  settings.AvatarOffsetX,
		OffsetY:  settings.AvatarOffsetY,
	})

	renderClient := rasterize.NewClient(api, cfg.RenderAPIURL, cfg.RenderClientID, cfg.RenderClientSecret)
	rasterizer := rasterize.New(renderClient, avatarClient, settings.RasterizeWorkers, log)

	narrator := narration.New(
		cfg.LLMAPIURL,
		cfg.LLMAPIKey,
		settings.LLMModel,
		settings.LLMTemperature,
		settings.LLMMaxTokens,
		log,
	)

	conversionPipeline := pipeline.New(store, deck.NewParser(), rasterizer, narrator, videoService, log)

	return conversionPipeline, natsConnection.Close, nil
}

func printResult(result *core.ConversionResult) error {
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Println(string(output))

	return nil
}

func run() error {
	args, err := parseArgs()
	if err != nil {
		return err
	}

	// Bootstrap logger until the configured logs dir is known.
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return err
	}

	log, err := setupLogger(cfg.LogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conversionPipeline, closeConn, err := buildPipeline(cfg, log)
	if err != nil {
		log.Error("Failed to build pipeline: %v", err)

		return err
	}
	defer closeConn()

	result, err := conversionPipeline.Convert(ctx, args.deckID, args.title, args.maxSlides)
	if err != nil {
		log.Error("Conversion of deck %s failed: %v", args.deckID, err)

		return err
	}

	return printResult(result)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "deck2video: %v\n", err)
		os.Exit(1)
	}
}
