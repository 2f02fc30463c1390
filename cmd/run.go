package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hirescope/hirescope/internal/evaluator"
	"github.com/hirescope/hirescope/internal/logger"
	"github.com/hirescope/hirescope/internal/mlserver"
	"github.com/hirescope/hirescope/internal/present"
	"github.com/hirescope/hirescope/internal/secrets"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptExit           = "Exit"
	PromptShowTranscript = "Show interview transcript"
	PromptResultToFile   = "Dump result to file"
	PromptNewEvaluation  = "Start a new evaluation"
	PromptReprobe        = "Re-probe the scoring server"

	// A full round includes up to three slow ML calls.
	evaluationDeadline = 5 * time.Minute
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptExit, PromptShowTranscript, PromptResultToFile, PromptNewEvaluation, PromptReprobe},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hirescope main command",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "path to the candidate resume file")
	runCmd.Flags().StringP("video", "v", "", "path to the interview video file")
	runCmd.Flags().Float64P("cgpa", "g", 0, "candidate CGPA on the 10-point scale")
	runCmd.Flags().BoolP("auto-approve", "y", false, "print the result and exit without the interactive menu")
	runCmd.Flags().Int64("seed", 0, "seed for offline analysis (0 means time-based)")

	viper.BindPFlag("evaluate.resume", runCmd.Flags().Lookup("resume"))
	viper.BindPFlag("evaluate.video", runCmd.Flags().Lookup("video"))
	viper.BindPFlag("evaluate.cgpa", runCmd.Flags().Lookup("cgpa"))
	viper.BindPFlag("fallback.seed", runCmd.Flags().Lookup("seed"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hirescope", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Evaluate.Resume == "" || config.Evaluate.Video == "" {
		logger.Fatal("a resume file and a video file are required to evaluate a candidate",
			zap.String("hint", "pass --resume and --video or set them under the evaluate section"),
		)
	}

	probe := mlserver.NewProbe(config.Server.URL, config.Server.ProbeTimeout, logger)

	if viper.GetBool("offline") {
		logger.Info("offline mode requested, skipping the scoring server")
	} else if !probe.Check(ctx) {
		logger.Warn("scoring server is unreachable, falling back to offline analysis",
			zap.String("server", config.Server.URL),
		)
	}

	token, err := resolveToken(config)
	if err != nil && !probe.Available() {
		// The token only matters when the remote path is live.
		err = nil
	}
	if err != nil {
		logger.Fatal(
			"loading scoring server token",
			zap.Error(err),
			zap.String("hint", "set HIRESCOPE_TOKEN_FILE environment variable or the 'server.token-file' key in the configuration file"),
		)
	}

	client := mlserver.New(mlserver.Config{
		URL:            config.Server.URL,
		Token:          token,
		ConnectTimeout: config.Server.ConnectTimeout,
		RequestTimeout: config.Server.RequestTimeout,
	}, probe, logger)

	fallback := evaluator.NewFallback(config.Fallback.Seed, logger)
	coordinator := evaluator.NewCoordinator(ctx, client, probe, fallback, logger)

	state, err := evaluate(ctx, coordinator, config, logger)
	if err != nil {
		logger.Fatal("evaluating candidate", zap.Error(err))
	}

	view, err := present.FromState(*state)
	if err != nil {
		logger.Fatal("presenting result", zap.Error(err))
	}

	printView(view)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, coordinator, probe, config, view, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		// The view can go stale only after a new evaluation.
		if action == PromptNewEvaluation {
			state := coordinator.State()
			view, err = present.FromState(state)
			if err != nil {
				logger.Fatal("presenting result", zap.Error(err))
			}
			printView(view)
		}
	}
}

// evaluate submits both inputs and waits for the round to complete.
func evaluate(ctx context.Context, coordinator *evaluator.Coordinator, config *Config, logger *zap.Logger) (*evaluator.State, error) {
	states, cancel := coordinator.Subscribe()
	defer cancel()

	resume := &evaluator.LocalFile{Path: config.Evaluate.Resume}
	video := &evaluator.LocalFile{Path: config.Evaluate.Video}

	if err := coordinator.SubmitResume(ctx, resume, config.Evaluate.CGPA); err != nil {
		return nil, err
	}
	if err := coordinator.SubmitVideo(ctx, video); err != nil {
		return nil, err
	}

	logger.Info("evaluation started",
		zap.String("resume", config.Evaluate.Resume),
		zap.String("video", config.Evaluate.Video),
		zap.Float64("cgpa", config.Evaluate.CGPA),
	)

	deadline := time.NewTimer(evaluationDeadline)
	defer deadline.Stop()

	for {
		select {
		case state, ok := <-states:
			if !ok {
				return nil, errors.New("state subscription closed")
			}

			if state.LastError != "" {
				logger.Warn("evaluation problem", zap.String("problem", state.LastError))
				coordinator.ClearLastError()
			}

			if state.Phase == evaluator.PhaseComplete {
				return &state, nil
			}
		case <-deadline.C:
			return nil, fmt.Errorf("evaluation did not complete within %s", evaluationDeadline)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func handleAction(ctx context.Context, action string, coordinator *evaluator.Coordinator, probe *mlserver.Probe, config *Config, view *present.View, logger *zap.Logger) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptShowTranscript:
		state := coordinator.State()
		if state.Video == nil || state.Video.Transcript == "" {
			fmt.Println("no transcript available")
			return nil
		}
		fmt.Println(state.Video.Transcript)
		return nil
	case PromptResultToFile:
		filename, err := view.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptNewEvaluation:
		coordinator.Reset()
		if _, err := evaluate(ctx, coordinator, config, logger); err != nil {
			return err
		}
		return nil
	case PromptReprobe:
		available := probe.Check(ctx)
		logger.Info("probed the scoring server",
			zap.String("server", config.Server.URL),
			zap.Bool("available", available),
		)
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printView(view *present.View) {
	fmt.Println()
	for _, line := range view.Lines() {
		fmt.Println(line)
	}
	fmt.Println()
}

func resolveToken(config *Config) (string, error) {
	tokenFile := strings.TrimSpace(config.Server.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("server.token-file"))
	}

	if tokenFile == "" {
		return "", nil
	}

	return secrets.Load(secrets.Source{
		Name: "scoring server token",
		File: tokenFile,
	})
}
