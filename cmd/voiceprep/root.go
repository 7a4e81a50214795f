package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/voiceprep/internal/config"
	"github.com/example/voiceprep/internal/onnx"
	"github.com/example/voiceprep/internal/pipeline"
	"github.com/example/voiceprep/internal/schedule"
	"github.com/example/voiceprep/internal/server"
	"github.com/example/voiceprep/internal/text"
	"github.com/example/voiceprep/internal/vocab"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "voiceprep",
		Short: "F5 reference preprocessing service",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.Log.Level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newPreprocessCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.ManifestPath == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, activeCfg.Validate()
}

// buildService assembles the preprocessing pipeline from configuration.
// The returned closer releases the ORT sessions.
func buildService(cfg config.Config) (*pipeline.Service, func(), error) {
	table, err := vocab.Load(cfg.Paths.VocabPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load vocabulary: %w", err)
	}

	sm, err := onnx.NewSessionManager(cfg.Paths.ManifestPath)
	if err != nil {
		return nil, nil, err
	}

	graph, ok := sm.Session(onnx.PreprocessGraph)
	if !ok {
		return nil, nil, fmt.Errorf("manifest has no %q graph", onnx.PreprocessGraph)
	}

	engine, err := onnx.NewEngine(sm, onnx.RunnerConfig{
		LibraryPath: cfg.Runtime.ORTLibraryPath,
		APIVersion:  cfg.Runtime.ORTAPIVersion,
		Seed:        cfg.Runtime.Seed,
	})
	if err != nil {
		return nil, nil, err
	}

	sched, err := schedule.New(cfg.Runtime.Steps, schedule.DefaultDim)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}

	seg := text.NewSegmenter(text.NewPinyinTransliterator())
	seg.SetPolyphone(cfg.Text.Polyphone)

	svc, err := pipeline.NewService(pipeline.Deps{
		Vocab:     table,
		Segmenter: seg,
		Engine:    engine,
		Graph:     graph,
		Schedule:  sched,
	})
	if err != nil {
		engine.Close()
		return nil, nil, err
	}

	slog.Info("pipeline ready",
		"vocab_size", table.Size(),
		"steps", cfg.Runtime.Steps,
		"seed", cfg.Runtime.Seed,
	)

	return svc, engine.Close, nil
}
