package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/store"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// RenderComparison writes the model comparison table.
func RenderComparison(w io.Writer, rows []ComparisonRow) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "MODEL\tACCURACY\tPRECISION\tRECALL\tF1")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", r.Model, r.Accuracy, r.PrecisionWeighted, r.RecallWeighted, r.F1Weighted)
	}
	return tw.Flush()
}

// RenderClassificationReport writes per-class scores followed by the
// averages.
func RenderClassificationReport(w io.Writer, rep *ClassificationReport) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CLASS\tPRECISION\tRECALL\tF1\tSUPPORT")
	for _, c := range rep.Classes {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%d\n", c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(tw, "accuracy\t\t\t%.4f\t%d\n", rep.Accuracy, rep.WeightedAvg.Support)
	for _, c := range []ClassScores{rep.MacroAvg, rep.WeightedAvg} {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%d\n", c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	return tw.Flush()
}

// RenderConfusionMatrix writes the matrix with true labels as rows.
func RenderConfusionMatrix(w io.Writer, cm *ConfusionMatrix) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "TRUE \\ PRED\t%s\n", strings.Join(cm.Names, "\t"))
	for i, name := range cm.Names {
		cells := make([]string, len(cm.Counts[i]))
		for j, n := range cm.Counts[i] {
			cells[j] = fmt.Sprint(n)
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// RenderROC writes the AUC of each class.
func RenderROC(w io.Writer, curves []ROCCurve) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CLASS\tAUC\tPOINTS")
	for _, c := range curves {
		if !c.Defined {
			fmt.Fprintf(tw, "%s\tn/a\t0\n", c.Name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%d\n", c.Name, c.AUC, len(c.FPR))
	}
	return tw.Flush()
}

// RenderFeatureImportance writes the ranked terms.
func RenderFeatureImportance(w io.Writer, fi *FeatureImportance) error {
	if !fi.Supported {
		_, err := fmt.Fprintln(w, "feature importance not available for this model")
		return err
	}

	tw := newTable(w)
	if len(fi.Global) > 0 {
		fmt.Fprintln(tw, "TERM\tIMPORTANCE")
		for _, t := range fi.Global {
			fmt.Fprintf(tw, "%s\t%.4f\n", t.Term, t.Score)
		}
	}
	for _, class := range fi.PerClass {
		fmt.Fprintf(tw, "%s\tCOEFFICIENT\n", class.Name)
		for _, t := range class.Terms {
			fmt.Fprintf(tw, "  %s\t%.4f\n", t.Term, t.Score)
		}
	}
	return tw.Flush()
}

// ReportKey returns the blob key of a named JSON report inside dir.
func ReportKey(dir, name string) string {
	return path.Join(dir, name+".json")
}

// SaveReport writes v as indented JSON to dir/name.json and returns the key.
func SaveReport(ctx context.Context, blobs store.BlobStore, dir, name string, v any) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", errors.ValidationError(fmt.Sprintf("invalid report name %q", name))
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.InternalError("failed to encode report", err)
	}

	key := ReportKey(dir, name)
	if err := blobs.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}
