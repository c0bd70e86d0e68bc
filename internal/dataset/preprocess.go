package dataset

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TextNormalizer turns raw narrative text into canonical token strings.
type TextNormalizer interface {
	Normalize(text string) string
}

// Preprocess normalizes every record's text. Records are split across up to
// workers goroutines; output order matches input order.
func Preprocess(ctx context.Context, records []RawRecord, n TextNormalizer, workers int) ([]ProcessedRecord, error) {
	out := make([]ProcessedRecord, len(records))
	if len(records) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (len(records) + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out[i] = ProcessedRecord{
					RawRecord:     records[i],
					ProcessedText: n.Normalize(records[i].Text),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// ProcessedTexts returns the normalized text of every record.
func ProcessedTexts(records []ProcessedRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ProcessedText
	}
	return out
}

// Labels returns the category of every record.
func Labels(records []ProcessedRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Category
	}
	return out
}
