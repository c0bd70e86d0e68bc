package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ricesearch/complaint-classifier/internal/dataset"
	"github.com/ricesearch/complaint-classifier/internal/evaluation"
	"github.com/ricesearch/complaint-classifier/internal/trainer"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate saved models on a labelled CSV",
		Long: `Load saved models and score them on a labelled complaints CSV. For each
model the command prints the classification report, the confusion matrix,
per-class ROC AUC when the model estimates probabilities, and the most
important terms when the model can explain itself. Models are ranked by
weighted F1.`,
		RunE: runEvaluate,
	}

	cmd.Flags().StringP("data", "d", "", "labelled complaints CSV file (overrides config)")
	cmd.Flags().StringSliceP("model", "m", nil, "saved model names (default: every saved model)")
	cmd.Flags().Int("top", 0, "number of terms in feature importance output (default from config)")
	cmd.Flags().String("report-dir", "", "write JSON reports to this directory")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("data"); v != "" {
		a.cfg.Data.Path = v
	}
	if v, _ := flags.GetInt("top"); v > 0 {
		a.cfg.Report.TopN = v
	}
	if v, _ := flags.GetString("report-dir"); v != "" {
		a.cfg.Report.Dir = v
	}
	if a.cfg.Data.Path == "" {
		return fmt.Errorf("no dataset given: use --data or data.path")
	}

	ctx := cmd.Context()

	blobs, err := a.openStore()
	if err != nil {
		return err
	}
	defer blobs.Close()

	tr := trainer.New(trainer.Options{Store: blobs, Logger: a.log})
	names, _ := flags.GetStringSlice("model")
	if len(names) == 0 {
		if names, err = tr.SavedModels(ctx, a.cfg.Store.Dir); err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("no saved models in %s", a.cfg.Store.Dir)
		}
	}

	records, _, err := dataset.LoadCSV(a.cfg.Data.Path, dataset.OptionsFromConfig(a.cfg.Data))
	if err != nil {
		return err
	}

	normalizer, flush, err := a.normalizer(ctx)
	if err != nil {
		return err
	}
	defer flush()

	processed, err := dataset.Preprocess(ctx, records, normalizer, a.cfg.Train.Workers)
	if err != nil {
		return err
	}
	texts := dataset.ProcessedTexts(processed)
	y := dataset.Labels(processed)

	ev := evaluation.NewEvaluator(a.log)
	reports := make([]*evaluation.ModelReport, 0, len(names))
	rows := make([]evaluation.ComparisonRow, 0, len(names))
	for _, name := range names {
		b, err := tr.LoadModel(ctx, name, a.cfg.Store.Dir)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		X, err := b.Vectorizer.Transform(texts)
		if err != nil {
			return err
		}
		rep, err := ev.Diagnose(name, b.Model, X, y, b.Vectorizer.Terms(), a.cfg.Report.TopN)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", name, err)
		}
		reports = append(reports, rep)
		rows = append(rows, rep.Metrics.Row(name))
	}
	evaluation.Rank(rows)

	if a.cfg.Report.Dir != "" {
		if _, err := evaluation.SaveReport(ctx, blobs, a.cfg.Report.Dir, "evaluation", rows); err != nil {
			return err
		}
		for _, rep := range reports {
			key, err := evaluation.SaveReport(ctx, blobs, a.cfg.Report.Dir, rep.Model+"_evaluation", rep)
			if err != nil {
				return err
			}
			a.log.Info("Wrote report", "key", key)
		}
	}

	if a.jsonOutput() {
		return a.printJSON(map[string]any{"comparison": rows, "reports": reports})
	}

	for _, rep := range reports {
		if err := printModelReport(a, rep); err != nil {
			return err
		}
	}
	fmt.Fprintln(a.out, "== Comparison ==")
	return evaluation.RenderComparison(a.out, rows)
}

func printModelReport(a *app, rep *evaluation.ModelReport) error {
	fmt.Fprintf(a.out, "== %s (%s) ==\n", rep.Model, rep.Kind)
	if err := evaluation.RenderClassificationReport(a.out, rep.Classification); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	if err := evaluation.RenderConfusionMatrix(a.out, rep.Confusion); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	if rep.ROCSupported {
		if err := evaluation.RenderROC(a.out, rep.ROC); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(a.out, "ROC curves not available for this model")
	}
	fmt.Fprintln(a.out)
	if rep.Importance != nil {
		if err := evaluation.RenderFeatureImportance(a.out, rep.Importance); err != nil {
			return err
		}
		fmt.Fprintln(a.out)
	}
	return nil
}
