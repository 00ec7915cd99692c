/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/config"
	"github.com/ripplehome/streamcore/internal/fsprovider"
	"github.com/ripplehome/streamcore/internal/logging"
	"github.com/ripplehome/streamcore/internal/server"
)

var serveMediaRoot string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming core's HTTP server",
	Long:  "Starts the flow generator, multi-client fan-out, and the single/flow/multi HTTP endpoints, backed by a filesystem media provider.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMediaRoot, "media-root", "", "directory of raw PCM files served by the standalone filesystem provider (required)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := logging.Setup(cfg.Environment)
	logger.Info().Msg("streamcore starting")

	if serveMediaRoot == "" {
		return fmt.Errorf("--media-root is required")
	}

	provider := fsprovider.New(serveMediaRoot, audio.AudioFormat{
		ContentType:  audio.ContentPCM24,
		SampleRateHz: 48000,
		BitDepth:     24,
		Channels:     2,
	})

	profiles, err := config.LoadPlayerProfiles(cfg.PlayerProfilesPath)
	if err != nil {
		return fmt.Errorf("load player profiles: %w", err)
	}

	srv, err := server.New(cfg, provider, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	for id, profile := range profiles {
		srv.Registry().AddPlayer(audio.Player{
			ID:              id,
			MaxSampleRateHz: profile.MaxSampleRateHz,
			Supports24Bit:   profile.Supports24Bit,
			DisplayName:     profile.DisplayName,
			OutputCodec:     profile.OutputCodec,
			OutputChannels:  audio.OutputChannelsMode(profile.OutputChannels),
			EQBassDB:        profile.EQBassDB,
			EQMidDB:         profile.EQMidDB,
			EQTrebleDB:      profile.EQTrebleDB,
		})
		logger.Info().Str("player_id", id).Msg("registered player profile")
	}

	httpServer := srv.HTTPServer()
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("streamcore stopped")
	return nil
}
