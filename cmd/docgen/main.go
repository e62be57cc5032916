// Command docgen creates an AI-generated document with draft review feedback
// directly against the configured database.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/richmond-dms/docflow/internal/ai"
	"github.com/richmond-dms/docflow/internal/config"
	"github.com/richmond-dms/docflow/internal/db"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/services"
	"github.com/richmond-dms/docflow/pkg/logger"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultAuthor = "ao1@airforce.mil"

type options struct {
	user       string
	offline    bool
	model      string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "docgen <template> <pages> <feedbacks> [title]",
		Short: "Generate a document with draft review feedback",
		Long: fmt.Sprintf("Generates a document from one of the templates (%s) and stores it as a draft.\n"+
			"pages must be %d-%d and feedbacks 0-%d.",
			strings.Join(ai.TemplateKeys(), ", "), ai.MinPages, ai.MaxPages, ai.MaxFeedbacks),
		Args:         cobra.RangeArgs(3, 4),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseArgs(args)
			if err != nil {
				return err
			}
			return run(cmd, opts, in)
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", defaultAuthor, "author email or user ID")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "compose locally without calling OpenRouter")
	cmd.Flags().StringVar(&opts.model, "model", "", "OpenRouter model override")
	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv(config.ConfigPathEnv), "path to a YAML config file")
	return cmd
}

func parseArgs(args []string) (services.GenerateInput, error) {
	in := services.GenerateInput{Template: strings.ToLower(args[0])}
	pages, err := strconv.Atoi(args[1])
	if err != nil {
		return in, fmt.Errorf("pages must be a number: %q", args[1])
	}
	feedbacks, err := strconv.Atoi(args[2])
	if err != nil {
		return in, fmt.Errorf("feedbacks must be a number: %q", args[2])
	}
	in.Pages, in.Feedbacks = pages, feedbacks
	if len(args) == 4 {
		in.Title = args[3]
	}
	return in, nil
}

func run(cmd *cobra.Command, opts *options, in services.GenerateInput) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	zapLogger, err := logger.NewLogger(cfg.Environment, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Initialize(cfg, zapLogger)
	if err != nil {
		return err
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	var author models.User
	err = database.WithContext(ctx).Preload("Role").
		Where("email = ? OR id = ?", strings.ToLower(opts.user), opts.user).
		First(&author).Error
	if err != nil {
		return fmt.Errorf("author %q not found: %w", opts.user, err)
	}

	var completer ai.Completer
	switch {
	case opts.offline:
	case cfg.OpenRouter.APIKey == "":
		zapLogger.Warn("OPENROUTER_API_KEY not set, composing offline")
	default:
		var aiOpts []ai.Option
		if opts.model != "" {
			aiOpts = append(aiOpts, ai.WithModel(opts.model))
		}
		completer = ai.NewOpenRouterClient(cfg.OpenRouter, zapLogger, aiOpts...)
	}

	generator := services.NewGeneratorService(database, completer, zapLogger, metrics.NewMetricsCollector())
	res, err := generator.Generate(ctx, &author, in)
	if err != nil {
		zapLogger.Error("Generation failed", zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Document created: %s\n", res.Document.ID)
	fmt.Fprintf(out, "  Title:      %s\n", res.Document.Title)
	fmt.Fprintf(out, "  Template:   %s\n", in.Template)
	fmt.Fprintf(out, "  Pages:      %d\n", in.Pages)
	fmt.Fprintf(out, "  Sections:   %d\n", res.Sections)
	fmt.Fprintf(out, "  Paragraphs: %d\n", res.Paragraphs)
	fmt.Fprintf(out, "  Feedback:   %d\n", res.Feedback)
	fmt.Fprintf(out, "  Generator:  %s\n", res.Generator)
	if res.Model != "" {
		fmt.Fprintf(out, "  Model:      %s\n", res.Model)
	}
	fmt.Fprintf(out, "  Size:       %d bytes\n", res.Document.FileSize)
	return nil
}
