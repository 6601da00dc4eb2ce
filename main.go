package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/meownoid/genre-covers/internal/cover"
)

type app struct {
	configPath string
	verbose    bool

	cfg    *Config
	logger *log.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "covergen",
		Short:        "Generate genre cover tiles with gradient captions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.newRenderCmd())
	root.AddCommand(a.newGenresCmd())
	root.AddCommand(a.newBotCmd())
	root.AddCommand(a.newServeCmd())
	return root
}

// load reads the config, when one is given, and sets up logging.
func (a *app) load() error {
	cfg := DefaultConfig()
	if a.configPath != "" {
		loaded, err := LoadConfig(a.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	a.cfg = &cfg
	a.logger = newLogger(os.Stderr, a.verbose || cfg.Debug)
	if a.cfg.Debug {
		a.logger.Debug("running in debug mode")
	}
	return nil
}

func (a *app) requireConfig() error {
	if a.configPath == "" {
		return errors.New("path to config must be specified with --config")
	}
	return nil
}

func (a *app) renderer() (*cover.Renderer, error) {
	style, err := a.cfg.Style.Style()
	if err != nil {
		return nil, err
	}
	return cover.NewRenderer(style, a.logger), nil
}

func (a *app) newRenderCmd() *cobra.Command {
	var (
		text, outputDir, outputPath string
		opts                        CoverConfig
	)

	cmd := &cobra.Command{
		Use:   "render <image>",
		Short: "Add a caption to the bottom left of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			_, err = r.Render(cover.Request{
				Options:    opts.Options(text),
				InputPath:  args[0],
				OutputPath: outputPath,
				OutputDir:  outputDir,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "text to write on the image")
	cmd.Flags().StringVar(&outputDir, "output", "output_images", "output directory")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "exact output file (.png or .jpg), overrides --output")
	cmd.Flags().Float64Var(&opts.FontSize, "fontsize", 60, "font size in pixels")
	cmd.Flags().StringVar(&opts.Font, "font", "", "path to a custom .ttf/.otf font")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "target width")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "target height")
	cmd.Flags().IntVar(&opts.PaddingX, "padding-x", 40, "horizontal padding")
	cmd.Flags().IntVar(&opts.PaddingY, "padding-y", 160, "vertical padding")
	_ = cmd.MarkFlagRequired("text")
	cmd.MarkFlagsRequiredTogether("width", "height")
	return cmd
}

func (a *app) newGenresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "Render a cover and a tile manifest for every configured genre",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireConfig(); err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			b := &batch{cfg: a.cfg, renderer: r, logger: a.logger}
			return b.run(cmd.Context())
		},
	}
}

func (a *app) newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot that turns photos into covers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireConfig(); err != nil {
				return err
			}
			if a.cfg.Bot.Token == "Your token here" || a.cfg.Bot.Token == "" {
				return errors.New("you are using default config, please copy it and fill with appropriate values")
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			bot, err := NewBot(a.cfg, r, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create bot: %w", err)
			}
			return bot.Run(cmd.Context())
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cover rendering over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			s := newServer(a.cfg, r, a.logger)
			return s.run(cmd.Context())
		},
	}
	return cmd
}
