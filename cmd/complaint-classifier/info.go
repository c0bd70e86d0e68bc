package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/complaint-classifier/internal/bus"
	"github.com/ricesearch/complaint-classifier/internal/evaluation"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/trainer"
)

// modelInfo describes what an algorithm can do.
type modelInfo struct {
	Key           string        `json:"key"`
	Name          string        `json:"name"`
	Kind          ml.Kind       `json:"kind"`
	Probabilities bool          `json:"probabilities"`
	Explanation   ml.Capability `json:"explanation"`
}

func describeModels() ([]modelInfo, error) {
	infos := make([]modelInfo, 0, len(trainer.AllKeys))
	for _, key := range trainer.AllKeys {
		name, err := trainer.DisplayName(key)
		if err != nil {
			return nil, err
		}
		kind, err := trainer.KindOf(key)
		if err != nil {
			return nil, err
		}
		m, err := ml.New(kind)
		if err != nil {
			return nil, err
		}
		infos = append(infos, modelInfo{
			Key:           key,
			Name:          name,
			Kind:          kind,
			Probabilities: ml.SupportsProba(m),
			Explanation:   ml.CapabilityOf(m),
		})
	}
	return infos, nil
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the available classifiers and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			infos, err := describeModels()
			if err != nil {
				return err
			}

			var saved []string
			if showSaved, _ := cmd.Flags().GetBool("saved"); showSaved {
				blobs, err := a.openStore()
				if err != nil {
					return err
				}
				defer blobs.Close()

				tr := trainer.New(trainer.Options{Store: blobs, Logger: a.log})
				if saved, err = tr.SavedModels(cmd.Context(), a.cfg.Store.Dir); err != nil {
					return err
				}
			}

			if a.jsonOutput() {
				return a.printJSON(map[string]any{"models": infos, "saved": saved})
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tKIND\tPROBABILITIES\tEXPLANATION")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", info.Key, info.Name, info.Kind, info.Probabilities, info.Explanation)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if cmd.Flags().Changed("saved") {
				fmt.Fprintf(a.out, "\nSaved models in %s:\n", a.cfg.Store.Dir)
				if len(saved) == 0 {
					fmt.Fprintln(a.out, "  (none)")
				}
				for _, name := range saved {
					fmt.Fprintf(a.out, "  %s\n", name)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("saved", false, "also list the models saved in the model directory")

	return cmd
}

var metricDescriptions = map[string]string{
	evaluation.MetricAccuracy:          "fraction of correctly classified samples",
	evaluation.MetricPrecisionMacro:    "unweighted mean of per-class precision",
	evaluation.MetricRecallMacro:       "unweighted mean of per-class recall",
	evaluation.MetricF1Macro:           "unweighted mean of per-class F1",
	evaluation.MetricPrecisionWeighted: "per-class precision weighted by support",
	evaluation.MetricRecallWeighted:    "per-class recall weighted by support",
	evaluation.MetricF1Weighted:        "per-class F1 weighted by support (ranking metric)",
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the evaluation metrics",
		Long: `List the metrics reported for every model. Averages run over the union
of true and predicted labels; a class that is never predicted scores zero
precision.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out := cmd.OutOrStdout()

			if format == "json" {
				a := &app{format: format, out: out}
				return a.printJSON(metricDescriptions)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "METRIC\tDESCRIPTION")
			for _, name := range evaluation.MetricNames {
				fmt.Fprintf(tw, "%s\t%s\n", name, metricDescriptions[name])
			}
			return tw.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show pipeline events from the event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("journal")
			if path == "" {
				path = a.cfg.Bus.JournalPath
			}
			if path == "" {
				return fmt.Errorf("no event journal configured: use --journal or bus.journal_path")
			}

			filter := bus.EventFilter{}
			filter.RunID, _ = cmd.Flags().GetString("run")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			events, err := bus.ReadJournal(path, filter)
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				return a.printJSON(events)
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tRUN\tTOPIC\tEVENT")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Format(time.RFC3339), e.Event.RunID, e.Topic, e.Event.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("journal", "", "event journal path (overrides config)")
	cmd.Flags().String("run", "", "only show events of this run")
	cmd.Flags().Int("limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().Duration("since", 0, "only show events newer than this duration")

	return cmd
}
