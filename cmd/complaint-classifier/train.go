package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ricesearch/complaint-classifier/internal/dataset"
	"github.com/ricesearch/complaint-classifier/internal/evaluation"
	"github.com/ricesearch/complaint-classifier/internal/pipeline"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train, cross-validate, compare and save every configured model",
		Long: `Load a complaints CSV, normalize the narratives, split them into a
stratified train/test partition, fit the configured models on the training
part and rank them on the held-out part by weighted F1.

Every model is saved with its vectorizer in the model directory. When a
report directory is set, a JSON comparison and one diagnostic report per
model are written there as well.`,
		RunE: runTrain,
	}

	cmd.Flags().StringP("data", "d", "", "complaints CSV file (overrides config)")
	cmd.Flags().Int("sample", 0, "read at most this many rows (0 = all)")
	cmd.Flags().String("models", "", "comma-separated models to train (logreg, naive_bayes, random_forest, svm, boosting)")
	cmd.Flags().Int("folds", -1, "cross-validation folds, 0 disables (default from config)")
	cmd.Flags().String("model-dir", "", "directory for saved models (overrides config)")
	cmd.Flags().String("report-dir", "", "directory for JSON reports (overrides config)")

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	// Override from flags
	flags := cmd.Flags()
	if v, _ := flags.GetString("data"); v != "" {
		a.cfg.Data.Path = v
	}
	if flags.Changed("sample") {
		a.cfg.Data.SampleSize, _ = flags.GetInt("sample")
	}
	if v, _ := flags.GetString("models"); v != "" {
		a.cfg.Train.Models = v
	}
	if v, _ := flags.GetInt("folds"); v >= 0 {
		a.cfg.Train.Folds = v
	}
	if v, _ := flags.GetString("model-dir"); v != "" {
		a.cfg.Store.Dir = v
	}
	if v, _ := flags.GetString("report-dir"); v != "" {
		a.cfg.Report.Dir = v
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if a.cfg.Data.Path == "" {
		return fmt.Errorf("no dataset given: use --data or data.path")
	}

	ctx := cmd.Context()

	records, stats, err := dataset.LoadCSV(a.cfg.Data.Path, dataset.OptionsFromConfig(a.cfg.Data))
	if err != nil {
		return err
	}
	a.log.Info("Loaded dataset",
		"path", a.cfg.Data.Path,
		"rows", stats.RowsRead,
		"kept", stats.Kept,
		"unmapped", stats.Unmapped,
		"missing_text", stats.MissingText,
	)

	normalizer, flush, err := a.normalizer(ctx)
	if err != nil {
		return err
	}
	defer flush()

	blobs, err := a.openStore()
	if err != nil {
		return err
	}
	defer blobs.Close()

	events, err := a.openBus()
	if err != nil {
		return err
	}
	defer events.Close()

	p, err := pipeline.New(pipeline.Options{
		Config:     a.cfg,
		Normalizer: normalizer,
		Store:      blobs,
		Bus:        events,
		Logger:     a.log,
	})
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, records)
	if err != nil {
		return err
	}

	if a.jsonOutput() {
		return a.printJSON(res)
	}
	return printTrainResult(a, res)
}

func printTrainResult(a *app, res *pipeline.Result) error {
	fmt.Fprintf(a.out, "Run %s: %d training and %d test samples, %d features\n\n",
		res.RunID, res.Train, res.Test, res.Features)

	if len(res.CV) > 0 {
		names := make([]string, 0, len(res.CV))
		for name := range res.CV {
			names = append(names, name)
		}
		sort.Strings(names)

		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCV MEAN\tCV STD")
		for _, name := range names {
			cv := res.CV[name]
			fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", name, cv.Mean, cv.Std)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(a.out)
	}

	if err := evaluation.RenderComparison(a.out, res.Comparison); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nBest model: %s\n", res.Best)
	fmt.Fprintf(a.out, "Saved %d models to %s\n", len(res.Saved), a.cfg.Store.Dir)
	for _, key := range res.Reports {
		fmt.Fprintf(a.out, "Report: %s\n", key)
	}
	return nil
}
