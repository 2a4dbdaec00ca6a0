package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kikiluvv/fiora/internal/config"
	"github.com/kikiluvv/fiora/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// execute runs the root command and logs a failure once, with its reason.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger := logging.WithComponent("cli")
		logger.Error().Err(err).Msg("command failed")
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:           "fiora",
	Short:         "fiora - non-destructive video editing engine",
	Long:          "Trim, colour-adjust, filter, retime and remix a video without touching the source, then export the result.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose, cmd.ErrOrStderr())

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./fiora.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newFrameCommand())
	rootCmd.AddCommand(newStateCommand())
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		rows := [][]string{
			{"work_dir", cfg.WorkDir},
			{"temp_dir", cfg.TempDir},
			{"ffmpeg.binary_path", cfg.FFmpeg.BinaryPath},
			{"ffmpeg.probe_path", cfg.FFmpeg.ProbePath},
			{"ffmpeg.threads", fmt.Sprint(cfg.FFmpeg.Threads)},
			{"export.video_codec", cfg.Export.VideoCodec},
			{"export.audio_codec", cfg.Export.AudioCodec},
			{"export.preset", cfg.Export.Preset},
			{"export.crf", fmt.Sprint(cfg.Export.CRF)},
			{"export.threads", fmt.Sprint(cfg.Export.Threads)},
			{"audio.sample_rate", fmt.Sprint(cfg.Audio.SampleRate)},
			{"audio.channels", fmt.Sprint(cfg.Audio.Channels)},
			{"audio.resample", fmt.Sprint(cfg.Audio.Resample)},
			{"preview.thumbnail_width", fmt.Sprint(cfg.Preview.ThumbnailWidth)},
			{"preview.thumbnail_height", fmt.Sprint(cfg.Preview.ThumbnailHeight)},
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "./fiora.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		logger := logging.WithComponent("cli")
		logger.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
