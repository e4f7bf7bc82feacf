// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command schedulerd wires the adaptive segment scheduling core
// (internal/scheduler) to an in-memory event bus and a set of no-op
// collaborators, and serves its diagnostic HTTP surface. It exists to
// exercise the Scheduler's state machine end to end — selection, retry,
// backtracking, level switching — without a real player attached; a
// production deployment replaces the collaborators in collaborators.go
// with the actual playlist/fetch/transmux/buffer/ABR subsystems spec.md
// §1 treats as external.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/config"
	"github.com/ManuGH/hlscore/internal/diag"
	"github.com/ManuGH/hlscore/internal/fragment"
	xglog "github.com/ManuGH/hlscore/internal/log"
	"github.com/ManuGH/hlscore/internal/scheduler"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to tunables file (YAML)")
	diagAddr := flag.String("diag-addr", ":9091", "listen address for /healthz, /readyz, /metrics")
	levelCount := flag.Int("levels", 2, "number of synthetic quality levels to seed")
	fragCount := flag.Int("fragments", 20, "number of synthetic fragments per level")
	fragDuration := flag.Float64("fragment-duration", 6, "synthetic fragment duration in seconds")
	flag.Parse()

	if *showVersion {
		fmt.Printf("schedulerd %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "schedulerd"})
	logger := xglog.WithComponent("schedulerd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.DefaultTunables()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load tunables")
		}
		cfg = loaded
	}

	evBus := bus.NewMemoryBus()
	media := newMemoryMedia()
	sink := &memorySink{media: media, evBus: evBus}
	abr := &staticABR{bitrates: syntheticBitrates(*levelCount)}

	keyLoader := &noopKeyLoader{
		onLoaded: func(level, sn int) {
			_ = evBus.Publish(context.Background(), bus.TopicKeyLoaded, bus.EventKeyLoaded{Level: level, SN: sn})
		},
	}
	fragLoader := &noopFragmentLoader{
		onComplete: func(result transmuxResult) {
			media.appendBuffered(result.StartPTS, result.EndPTS)
			_ = evBus.Publish(context.Background(), bus.TopicTransmuxComplete, scheduler.TransmuxResult{
				Level:        result.Level,
				SN:           result.SN,
				StartPTS:     result.StartPTS,
				EndPTS:       result.EndPTS,
				VideoPayload: result.VideoPayload,
			})
		},
	}

	sched := scheduler.New(cfg, evBus, media, keyLoader, fragLoader, noopTransmuxer{}, sink, abr)

	sub, err := bus.SubscribeAll(ctx, evBus,
		bus.TopicMediaAttached, bus.TopicMediaDetaching, bus.TopicLevelLoaded,
		bus.TopicKeyLoaded, bus.TopicBufferAppended, bus.TopicBufferFlushed,
		bus.TopicAudioTrackSwitching, bus.TopicAudioTrackSwitched, bus.TopicError,
		bus.TopicTransmuxComplete,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe scheduler event topics")
	}

	for lvl := 0; lvl < *levelCount; lvl++ {
		details := syntheticLevel(lvl, *fragCount, *fragDuration)
		sched.OnLevelLoaded(lvl, details)
	}
	_ = evBus.Publish(ctx, bus.TopicMediaAttached, bus.EventMediaAttached{})
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx, sub) })

	diagSrv := &http.Server{
		Addr:    *diagAddr,
		Handler: diag.NewRouter(diag.SchedulerHealth{Scheduler: sched}, diag.Config{RateLimitRequests: 60}),
	}
	g.Go(func() error {
		logger.Info().Str("addr", *diagAddr).Msg("serving diagnostics")
		if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return diagSrv.Shutdown(shutdownCtx)
	})

	logger.Info().Str("version", version).Int("levels", *levelCount).Msg("schedulerd started")
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("schedulerd exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("schedulerd exiting")
}

func syntheticBitrates(n int) []int {
	rates := make([]int, n)
	for i := range rates {
		rates[i] = 500_000 * (i + 1)
	}
	return rates
}

func syntheticLevel(level, n int, dur float64) *fragment.LevelDetails {
	frags := make([]*fragment.Fragment, n)
	for i := 0; i < n; i++ {
		frags[i] = &fragment.Fragment{
			Level:    level,
			SN:       i,
			Start:    float64(i) * dur,
			Duration: dur,
			URL:      fmt.Sprintf("level%d/seg%05d.ts", level, i),
		}
	}
	return &fragment.LevelDetails{
		Fragments:      frags,
		StartSN:        0,
		EndSN:          n - 1,
		TargetDuration: dur,
		TotalDuration:  float64(n) * dur,
	}
}
