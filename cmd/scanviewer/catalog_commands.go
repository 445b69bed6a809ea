package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scanviewer/internal/backend"
	"scanviewer/internal/config"
	"scanviewer/internal/overlay"
)

func newCatalogCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newDatasetsCommand(ctx),
		newJobsCommand(ctx),
		newVideosCommand(ctx),
	}
}

func newDatasetsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List datasets known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *backend.Client) error {
				datasets, err := client.Datasets(c)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, datasets)
				}
				if len(datasets) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No datasets")
					return nil
				}
				rows := make([][]string, 0, len(datasets))
				for _, d := range datasets {
					rows = append(rows, []string{strconv.FormatInt(d.ID, 10), d.Name})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name"}, rows, []columnAlignment{alignRight, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var datasetID int64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs of a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(c context.Context, client *backend.Client) error {
				jobs, err := client.Jobs(c, datasetID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, j := range jobs {
					rows = append(rows, jobRow(cfg, j))
				}
				headers := []string{"ID", "Name", "Feature Type", "Tracking", "Base Only"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&datasetID, "dataset", "d", 0, "Dataset id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func jobRow(cfg *config.Config, job backend.Job) []string {
	return []string{
		strconv.FormatInt(job.ID, 10),
		job.Name,
		resolveFeatureType(cfg, job),
		yesNo(cfg.IsTrackingJob(job.Name)),
		yesNo(cfg.IsBaseOnlyJob(job.Name)),
	}
}

// resolveFeatureType prefers the type the backend reports for a job over
// the configured mapping.
func resolveFeatureType(cfg *config.Config, job backend.Job) string {
	return overlay.NormalizeFeatureType(cmp.Or(job.FeatureType, cfg.FeatureTypeFor(job.Name)))
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var datasetID int64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List the videos of a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *backend.Client) error {
				videos, err := client.Videos(c, datasetID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, videos)
				}
				if len(videos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No videos")
					return nil
				}
				rows := make([][]string, 0, len(videos))
				for _, v := range videos {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.Name,
						strconv.Itoa(v.Frames),
						fmt.Sprintf("%gx%g", v.Width, v.Height),
						v.MediaPath,
					})
				}
				headers := []string{"ID", "Name", "Frames", "Size", "Media"}
				aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&datasetID, "dataset", "d", 0, "Dataset id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

var (
	errJobNotFound   = errors.New("job not found")
	errVideoNotFound = errors.New("video not found")
)

func findJob(ctx context.Context, catalog backend.Catalog, datasetID, jobID int64) (backend.Job, error) {
	jobs, err := catalog.Jobs(ctx, datasetID)
	if err != nil {
		return backend.Job{}, err
	}
	for _, j := range jobs {
		if j.ID == jobID {
			return j, nil
		}
	}
	return backend.Job{}, fmt.Errorf("%w: %d in dataset %d", errJobNotFound, jobID, datasetID)
}

func findVideo(ctx context.Context, catalog backend.Catalog, datasetID, videoID int64) (backend.Video, error) {
	videos, err := catalog.Videos(ctx, datasetID)
	if err != nil {
		return backend.Video{}, err
	}
	for _, v := range videos {
		if v.ID == videoID {
			return v, nil
		}
	}
	return backend.Video{}, fmt.Errorf("%w: %d in dataset %d", errVideoNotFound, videoID, datasetID)
}
