package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"scanviewer/internal/annotation"
	"scanviewer/internal/backend"
	"scanviewer/internal/config"
)

type frameTarget struct {
	datasetID int64
	jobID     int64
	videoID   int64
	threshold float64
	allGaps   bool
}

func (t *frameTarget) bind(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&t.datasetID, "dataset", "d", 0, "Dataset id")
	cmd.Flags().Int64VarP(&t.jobID, "job", "j", 0, "Job id")
	cmd.Flags().Int64Var(&t.videoID, "video", 0, "Video id")
	cmd.Flags().Float64Var(&t.threshold, "threshold", -1, "Confidence threshold (defaults to viewer.threshold)")
	cmd.Flags().BoolVar(&t.allGaps, "all-gaps", false, "Fetch every unloaded run in one pass")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("video")
}

// frameSession is a one-video frame cache scoped to a single job.
type frameSession struct {
	job         backend.Job
	video       backend.Video
	featureType string
	cache       *annotation.Cache
}

func openFrameSession(ctx context.Context, cfg *config.Config, catalog backend.Catalog, logger *slog.Logger, target frameTarget) (*frameSession, error) {
	job, err := findJob(ctx, catalog, target.datasetID, target.jobID)
	if err != nil {
		return nil, err
	}
	video, err := findVideo(ctx, catalog, target.datasetID, target.videoID)
	if err != nil {
		return nil, err
	}
	threshold := cfg.Viewer.Threshold
	if target.threshold >= 0 {
		if target.threshold > 1 {
			return nil, fmt.Errorf("threshold must be between 0 and 1, got %v", target.threshold)
		}
		threshold = target.threshold
	}

	cache := annotation.New(catalog, annotation.Options{
		FetchAllGaps: target.allGaps || cfg.Viewer.FetchAllGaps,
		Logger:       logger,
	})
	cache.Reset(annotation.Scope{
		DatasetID: target.datasetID,
		JobID:     job.ID,
		Columns:   backend.ColumnsFor(cfg.IsTrackingJob(job.Name)),
		Stride:    cfg.Viewer.Stride,
		Category:  cfg.Viewer.Category,
		Threshold: threshold,
	}, []backend.Video{video})

	return &frameSession{
		job:         job,
		video:       video,
		featureType: resolveFeatureType(cfg, job),
		cache:       cache,
	}, nil
}

// load fetches [start, end) until every frame in it has been attempted.
func (s *frameSession) load(ctx context.Context, start, end int) error {
	for {
		outcome, err := s.cache.LoadRange(ctx, s.video.ID, start, end)
		if err != nil {
			return err
		}
		if outcome == annotation.Satisfied {
			return nil
		}
	}
}

func newFramesCommand(ctx *commandContext) *cobra.Command {
	var target frameTarget
	var start, count int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Fetch and print the annotations of a frame range",
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
			if count <= 0 {
				return fmt.Errorf("count must be positive")
			}

			session, err := openFrameSession(cmd.Context(), cfg, client, logger, target)
			if err != nil {
				return err
			}
			first := max(start, 0)
			end := min(first+count, session.video.Frames)
			if first >= end {
				return fmt.Errorf("start %d is outside video %d (%d frames)", start, session.video.ID, session.video.Frames)
			}
			if err := session.load(cmd.Context(), first, end); err != nil {
				return err
			}

			table := session.cache.Table(session.video.ID)[first:end]
			if asJSON {
				return writeJSON(cmd, table)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(table))
			for i, frame := range table {
				rows = append(rows, frameRow(first+i, frame, colorize))
			}
			headers := []string{"Frame", "Status", "Time", "Base", "Tracked", "Confidence", "Class"}
			aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			fmt.Fprintf(out, "%s · job %s (%s)\n", session.video.Name, session.job.Name, session.featureType)
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	target.bind(cmd)
	cmd.Flags().IntVar(&start, "start", 0, "First frame")
	cmd.Flags().IntVar(&count, "count", 10, "Number of frames")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func frameRow(index int, frame annotation.Frame, colorize bool) []string {
	row := []string{strconv.Itoa(index), renderFrameStatus(frame.Status, colorize), "", "", "", "", ""}
	if t, ok := frame.Time(); ok {
		row[2] = strconv.FormatFloat(t, 'f', 3, 64)
	}
	if frame.Status != annotation.StatusValid {
		return row
	}
	data := frame.Payload.Data
	row[3] = strconv.Itoa(len(data.BaseBoxes))
	if data.HasTracked() {
		row[4] = strconv.Itoa(len(data.TrackedBoxes))
	}
	if data.Confidence != nil {
		row[5] = strconv.FormatFloat(*data.Confidence, 'f', -1, 64)
	}
	if data.Class != nil {
		row[6] = strconv.Itoa(*data.Class)
	}
	return row
}
