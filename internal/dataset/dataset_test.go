package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

const sampleCSV = `Date received,Product,Consumer complaint narrative,Company
2019-01-01,Debt collection,Collector called me daily about a debt,ACME
2019-01-02,Mortgage,"Servicer lost my payment, charged late fee",BANK
2019-01-03,Student loan,Loan servicer misapplied payment,EDU
2019-01-04,Consumer Loan,,FIN
2019-01-05,"Credit reporting, repair, or other",Credit report has wrong balance,CRA
2019-01-06,"Credit reporting, credit repair services, or other personal consumer reports",Identity theft account on my report,CRA
2019-01-07,Consumer Loan,   ,FIN
2019-01-08,Consumer Loan,Car loan payoff amount was wrong,AUTO
`

func defaultOptions() Options {
	return OptionsFromConfig(config.Default().Data)
}

func TestReadCSV(t *testing.T) {
	records, stats, err := ReadCSV(strings.NewReader(sampleCSV), defaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	want := []RawRecord{
		{Text: "Collector called me daily about a debt", Category: DebtCollection},
		{Text: "Servicer lost my payment, charged late fee", Category: Mortgage},
		{Text: "Credit report has wrong balance", Category: CreditReporting},
		{Text: "Identity theft account on my report", Category: CreditReporting},
		{Text: "Car loan payoff amount was wrong", Category: ConsumerLoan},
	}
	if len(records) != len(want) {
		t.Fatalf("ReadCSV() returned %d records, want %d", len(records), len(want))
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}

	wantStats := Stats{RowsRead: 8, Unmapped: 1, MissingText: 2, Kept: 5}
	if *stats != wantStats {
		t.Errorf("stats = %+v, want %+v", *stats, wantStats)
	}
}

func TestReadCSV_SampleSizeAppliesBeforeFiltering(t *testing.T) {
	opts := defaultOptions()
	opts.SampleSize = 4

	records, stats, err := ReadCSV(strings.NewReader(sampleCSV), opts)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if stats.RowsRead != 4 {
		t.Errorf("RowsRead = %d, want 4", stats.RowsRead)
	}
	if len(records) != 2 {
		t.Errorf("kept %d records, want 2", len(records))
	}
}

func TestReadCSV_MissingColumn(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no text column", "Product,Company\nMortgage,BANK\n"},
		{"no category column", "Consumer complaint narrative\nhello\n"},
		{"empty input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadCSV(strings.NewReader(tt.data), defaultOptions())
			if !errors.IsValidation(err) {
				t.Errorf("ReadCSV() error = %v, want validation error", err)
			}
		})
	}
}

func TestReadCSV_ByteOrderMark(t *testing.T) {
	data := "\ufeffProduct,Consumer complaint narrative\nMortgage,Escrow shortage\n"

	records, _, err := ReadCSV(strings.NewReader(data), defaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(records) != 1 || records[0].Category != Mortgage {
		t.Errorf("ReadCSV() = %+v", records)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "complaints.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	records, _, err := LoadCSV(path, defaultOptions())
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if len(records) != 5 {
		t.Errorf("LoadCSV() returned %d records, want 5", len(records))
	}

	if _, _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), defaultOptions()); !errors.IsNotFound(err) {
		t.Errorf("LoadCSV(missing) error = %v, want not found", err)
	}
}

func TestCategories(t *testing.T) {
	tests := []struct {
		product string
		code    int
		name    string
	}{
		{"Credit reporting, credit repair services, or other personal consumer reports", 0, "Credit reporting"},
		{"Credit reporting, repair, or other", 0, "Credit reporting"},
		{"Debt collection", 1, "Debt collection"},
		{"Consumer Loan", 2, "Consumer Loan"},
		{"Mortgage", 3, "Mortgage"},
	}

	for _, tt := range tests {
		code, ok := CategoryCode(tt.product)
		if !ok || code != tt.code {
			t.Errorf("CategoryCode(%q) = %d, %v; want %d", tt.product, code, ok, tt.code)
		}
		if got := CategoryName(code); got != tt.name {
			t.Errorf("CategoryName(%d) = %q, want %q", code, got, tt.name)
		}
	}

	if _, ok := CategoryCode("Student loan"); ok {
		t.Error("Student loan should not be mapped")
	}
	if got := CategoryName(9); got != "Category 9" {
		t.Errorf("CategoryName(9) = %q", got)
	}
	if got := Categories(); len(got) != 4 || got[3] != Mortgage {
		t.Errorf("Categories() = %v", got)
	}
}

type upperNormalizer struct{}

func (upperNormalizer) Normalize(s string) string { return strings.ToUpper(s) }

func TestPreprocess(t *testing.T) {
	records := make([]RawRecord, 1000)
	for i := range records {
		records[i] = RawRecord{Text: strings.Repeat("a", i%7+1), Category: i % 4}
	}

	for _, workers := range []int{0, 1, 3, 16} {
		out, err := Preprocess(context.Background(), records, upperNormalizer{}, workers)
		if err != nil {
			t.Fatalf("Preprocess(workers=%d) error = %v", workers, err)
		}
		if len(out) != len(records) {
			t.Fatalf("Preprocess(workers=%d) returned %d records", workers, len(out))
		}
		for i := range records {
			if out[i].RawRecord != records[i] || out[i].ProcessedText != strings.ToUpper(records[i].Text) {
				t.Fatalf("record %d = %+v", i, out[i])
			}
		}
	}

	labels := Labels(mustPreprocess(t, records[:4]))
	for i, l := range labels {
		if l != i {
			t.Errorf("Labels()[%d] = %d", i, l)
		}
	}
}

func TestPreprocess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Preprocess(ctx, []RawRecord{{Text: "x"}}, upperNormalizer{}, 1)
	if err == nil {
		t.Error("Preprocess() should fail on a cancelled context")
	}
}

func mustPreprocess(t *testing.T, records []RawRecord) []ProcessedRecord {
	t.Helper()
	out, err := Preprocess(context.Background(), records, upperNormalizer{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	return out
}
