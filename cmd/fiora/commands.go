package main

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/fiora/internal/config"
	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/logging"
	"github.com/kikiluvv/fiora/internal/session"
	"github.com/kikiluvv/fiora/pkg/util"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <video>",
		Short: "Show source properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}
			info, err := engine.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Path", info.Path},
				{"Duration", util.FormatSeconds(info.Duration)},
			}
			if info.HasVideo {
				rows = append(rows,
					[]string{"Video", info.VideoCodec},
					[]string{"Size", fmt.Sprintf("%dx%d", info.Width, info.Height)},
					[]string{"Frame rate", strconv.FormatFloat(info.FrameRate, 'f', 3, 64)},
					[]string{"Frames", strconv.Itoa(info.FrameCount)},
				)
			}
			if info.HasAudio {
				rows = append(rows,
					[]string{"Audio", info.AudioCodec},
					[]string{"Sample rate", strconv.Itoa(info.SampleRate)},
					[]string{"Channels", strconv.Itoa(info.Channels)},
				)
			} else {
				rows = append(rows, []string{"Audio", "none"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Property", "Value"}, rows))
			return nil
		},
	}
}

func newRenderCommand() *cobra.Command {
	var (
		edits         editFlags
		output        string
		preset        string
		crf           int
		width, height int
	)

	cmd := &cobra.Command{
		Use:   "render <video>",
		Short: "Apply edits and export the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())

			// Ctrl-C cancels the export at the next frame
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, args[0], &edits)
			if err != nil {
				return err
			}
			defer s.Close()

			opts := cfg.EncodeOptions()
			if preset != "" {
				opts.Preset = preset
			}
			if crf > 0 {
				opts.CRF = crf
			}
			opts.Width, opts.Height = width, height

			job, err := s.ExportAsync(ctx, output, opts)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(s.Clip().FrameCount(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("exporting"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetVisibility(isatty.IsTerminal(os.Stderr.Fd())),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
			for p := range job.Progress() {
				_ = bar.Set(p.Frames)
			}
			_ = bar.Finish()

			logger := logging.WithComponent("cli")
			if err := job.Wait(); err != nil {
				var xe *session.ExportError
				if errors.As(err, &xe) && xe.Kind == session.Canceled {
					logger.Warn().Str("output", output).Msg("export canceled")
				}
				return err
			}

			logger.Info().
				Str("output", output).
				Str("duration", util.FormatSeconds(s.Clip().Duration())).
				Msg("export complete")
			return nil
		},
	}

	edits.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().StringVar(&preset, "preset", "", "encoder preset (default from config)")
	cmd.Flags().IntVar(&crf, "crf", 0, "constant rate factor (default from config)")
	cmd.Flags().IntVar(&width, "width", 0, "scale output to this width (requires --height)")
	cmd.Flags().IntVar(&height, "height", 0, "scale output to this height (requires --width)")
	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsRequiredTogether("width", "height")
	return cmd
}

func newFrameCommand() *cobra.Command {
	var (
		edits  editFlags
		at     string
		output string
		thumb  bool
	)

	cmd := &cobra.Command{
		Use:   "frame <video>",
		Short: "Write one rendered preview frame as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())

			t, err := util.ParseTimestamp(at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}

			s, err := openSession(cmd.Context(), args[0], &edits)
			if err != nil {
				return err
			}
			defer s.Close()

			var write func(*os.File) error
			if thumb {
				img, err := s.Thumbnail(t, cfg.Preview.ThumbnailWidth, cfg.Preview.ThumbnailHeight)
				if err != nil {
					return err
				}
				write = func(f *os.File) error { return png.Encode(f, img) }
			} else {
				img, err := s.FrameAt(t)
				if err != nil {
					return err
				}
				write = func(f *os.File) error { return png.Encode(f, img) }
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := write(f); err != nil {
				f.Close()
				return fmt.Errorf("encode png: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			logger := logging.WithComponent("cli")
			logger.Info().Str("output", output).Str("at", util.FormatSeconds(t)).Msg("frame written")
			return nil
		},
	}

	edits.register(cmd)
	cmd.Flags().StringVar(&at, "at", "0", "time in the rendered clip (SS, MM:SS or HH:MM:SS)")
	cmd.Flags().StringVarP(&output, "output", "o", "frame.png", "output PNG")
	cmd.Flags().BoolVar(&thumb, "thumb", false, "scale to the configured thumbnail size")
	return cmd
}

func newStateCommand() *cobra.Command {
	var edits editFlags

	cmd := &cobra.Command{
		Use:   "state <video>",
		Short: "Show the edit state the flags produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), args[0], &edits)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, stateRows(s.State()), 1))
			return nil
		},
	}

	edits.register(cmd)
	return cmd
}

func stateRows(st edit.State) [][]string {
	start, end := st.Trim()
	rows := [][]string{
		{"source duration", util.FormatSeconds(st.SourceDuration())},
		{"trim", util.FormatSeconds(start) + " - " + util.FormatSeconds(end)},
	}
	for _, a := range edit.Adjustments() {
		rows = append(rows, []string{a.String(), strconv.FormatFloat(st.Adjustment(a), 'g', -1, 64)})
	}

	names := make([]string, 0, len(st.Filters()))
	for _, f := range st.Filters() {
		names = append(names, f.String())
	}
	filters := strings.Join(names, ", ")
	if filters == "" {
		filters = "none"
	}
	rows = append(rows, []string{"filters", filters})

	for i, tr := range st.Tracks() {
		rows = append(rows, []string{
			fmt.Sprintf("track %d", i),
			fmt.Sprintf("%s (%s, gain %g)", tr.Name, util.FormatSeconds(tr.Duration), tr.Gain),
		})
	}
	return append(rows, []string{"rendered duration", util.FormatSeconds(st.RenderedDuration())})
}
