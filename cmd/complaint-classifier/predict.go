package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ricesearch/complaint-classifier/internal/pipeline"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [text...]",
		Short: "Classify complaint narratives with a saved model",
		Long: `Normalize each narrative and classify it with a saved model. Narratives
are taken from the arguments, or one per line from --file ("-" reads
standard input).`,
		RunE: runPredict,
	}

	cmd.Flags().StringP("model", "m", "naive_bayes", "saved model name")
	cmd.Flags().StringP("file", "f", "", "read narratives from file, one per line")

	return cmd
}

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Print the normalized form of complaint narratives",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			texts, err := readTexts(cmd, args)
			if err != nil {
				return err
			}

			n, flush, err := a.normalizer(cmd.Context())
			if err != nil {
				return err
			}
			defer flush()

			normalized := n.NormalizeAll(texts)
			if a.jsonOutput() {
				return a.printJSON(normalized)
			}
			for _, s := range normalized {
				fmt.Fprintln(a.out, s)
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "read narratives from file, one per line")

	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	texts, err := readTexts(cmd, args)
	if err != nil {
		return err
	}
	model, _ := cmd.Flags().GetString("model")

	ctx := cmd.Context()

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

	p, err := pipeline.New(pipeline.Options{
		Config:     a.cfg,
		Normalizer: normalizer,
		Store:      blobs,
		Logger:     a.log,
	})
	if err != nil {
		return err
	}

	preds, err := p.Classify(ctx, model, texts)
	if err != nil {
		return err
	}

	if a.jsonOutput() {
		return a.printJSON(preds)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCONFIDENCE\tTEXT")
	for _, pred := range preds {
		confidence := "-"
		if prob, ok := pred.Probabilities[pred.Category]; ok {
			confidence = fmt.Sprintf("%.3f", prob)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", pred.Category, confidence, truncate(pred.Text, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		for _, pred := range preds {
			printProbabilities(a.out, pred)
		}
	}
	return nil
}

func printProbabilities(w io.Writer, pred pipeline.Prediction) {
	if len(pred.Probabilities) == 0 {
		return
	}
	categories := make([]string, 0, len(pred.Probabilities))
	for c := range pred.Probabilities {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return pred.Probabilities[categories[i]] > pred.Probabilities[categories[j]]
	})

	fmt.Fprintf(w, "\n%s\n", truncate(pred.Text, 60))
	for _, c := range categories {
		fmt.Fprintf(w, "  %-40s %.4f\n", c, pred.Probabilities[c])
	}
}

// readTexts returns the narratives given as arguments or read from --file.
func readTexts(cmd *cobra.Command, args []string) ([]string, error) {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("no text given: pass narratives as arguments or use --file")
		}
		return args, nil
	}

	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readLines(r)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no text found in input")
	}
	return lines, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
