package main

import (
	"fmt"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scanviewer/internal/fileutil"
	"scanviewer/internal/overlay"
	"scanviewer/internal/viewer"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var target frameTarget
	var frame int
	var output string
	var width, height int

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the overlay of one frame to SVG or PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			format := strings.ToLower(filepath.Ext(output))
			if format != ".svg" && format != ".png" {
				return fmt.Errorf("output must end in .svg or .png, got %q", output)
			}
			if width <= 0 {
				width = cfg.Viewer.ViewWidth
			}
			if height <= 0 {
				height = cfg.Viewer.ViewHeight
			}

			var labels overlay.Labels
			if path := strings.TrimSpace(cfg.Viewer.LabelsPath); path != "" {
				if labels, err = overlay.LoadLabels(path); err != nil {
					return fmt.Errorf("load labels: %w", err)
				}
			}

			session, err := openFrameSession(cmd.Context(), cfg, client, logger, target)
			if err != nil {
				return err
			}
			frame = min(max(frame, 0), max(session.video.Frames-1, 0))
			if err := session.load(cmd.Context(), frame, frame+1); err != nil {
				return err
			}
			record, _ := session.cache.Frame(session.video.ID, frame)

			panel := viewer.New(viewer.Options{
				Width:  float64(width),
				Height: float64(height),
				NewAdapter: func(featureType string) overlay.Adapter {
					return overlay.ForFeatureType(featureType, labels)
				},
				IsBaseOnly: cfg.IsBaseOnlyJob,
				Logger:     logger,
			})
			panel.SetVideo(session.video)
			panel.SetJob(session.job, session.featureType)
			panel.Show(frame, record)

			viewW, viewH := panel.Video().ViewSize()
			err = fileutil.WriteFileAtomic(output, 0o644, func(w io.Writer) error {
				if format == ".svg" {
					return overlay.WriteSVG(w, panel.Container(), viewW, viewH)
				}
				return png.Encode(w, overlay.Rasterize(panel.Container(), int(viewW), int(viewH)))
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", panel.Snapshot().FrameLabel, output)
			return nil
		},
	}

	target.bind(cmd)
	cmd.Flags().IntVarP(&frame, "frame", "f", 0, "Frame index")
	cmd.Flags().StringVarP(&output, "output", "o", "overlay.svg", "Output file (.svg or .png)")
	cmd.Flags().IntVar(&width, "width", 0, "Viewer width (defaults to viewer.view_width)")
	cmd.Flags().IntVar(&height, "height", 0, "Viewer height (defaults to viewer.view_height)")
	return cmd
}
