package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printListingsTable(listings []domain.Listing) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tTITLE\tPRICE\tMAKE\tYEAR\tSTATUS\tVERDICT\n")
	for i := range listings {
		l := &listings[i]
		price := "-"
		if l.NormalizedPrice != nil {
			price = fmt.Sprintf("$%.0f", *l.NormalizedPrice)
		}
		year := "-"
		if l.Year != nil {
			year = fmt.Sprintf("%d", *l.Year)
		}
		verdict := "-"
		if l.Analysis != nil {
			verdict = string(l.Analysis.Recommendation)
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID,
			truncate(l.Title, 40),
			price,
			l.Make,
			year,
			l.Status,
			verdict,
		)
	}
	return tw.finish()
}

func printListingDetail(l *domain.Listing) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", l.ID)
	tw.writef("Title:\t%s\n", l.Title)
	if l.NormalizedPrice != nil {
		tw.writef("Price:\t$%.2f\n", *l.NormalizedPrice)
	} else {
		tw.writef("Price:\t%s\n", l.RawPriceText)
	}
	tw.writef("Make:\t%s\n", l.Make)
	tw.writef("Model:\t%s\n", l.Model)
	if l.Year != nil {
		tw.writef("Year:\t%d\n", *l.Year)
	}
	tw.writef("Status:\t%s\n", l.Status)
	tw.writef("Location:\t%s\n", l.Location)
	tw.writef("Seller:\t%s\n", l.Seller)
	tw.writef("URL:\t%s\n", l.CanonicalURL)
	if l.DuplicateOf != "" {
		tw.writef("Duplicate Of:\t%s\n", l.DuplicateOf)
	}
	if a := l.Analysis; a != nil {
		tw.writef("Verdict:\t%s (%.0f%% confidence)\n", a.Recommendation, a.Confidence*100)
		if a.ExpectedPrice != nil {
			tw.writef("Expected:\t$%.2f\n", *a.ExpectedPrice)
		}
		if a.DeltaPercent != nil {
			tw.writef("Delta:\t%+.1f%%\n", *a.DeltaPercent*100)
		}
		tw.writef("Reasoning:\t%s\n", a.Reasoning)
	}
	return tw.finish()
}

func printPriceHistoryTable(changes []domain.PriceChange) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("OLD\tNEW\tOBSERVED\n")
	for i := range changes {
		c := &changes[i]
		tw.writef("$%.2f\t$%.2f\t%s\n",
			c.OldPrice,
			c.NewPrice,
			c.ObservedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return tw.finish()
}

func printConflictsTable(conflicts []domain.ConflictRecord) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tLISTING\tFIELD\tCANDIDATES\tRESOLVED\n")
	for i := range conflicts {
		c := &conflicts[i]
		resolved := "-"
		if c.ResolvedAt != nil {
			resolved = c.ResolvedAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%d\t%s\n",
			c.ID,
			c.ListingID,
			c.Field,
			len(c.Candidates),
			resolved,
		)
	}
	return tw.finish()
}

func printTrendsTable(trends []domain.MarketTrend) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("MAKE\tSAMPLES\tP25\tMEDIAN\tP75\tDELTA\tCOMPUTED\n")
	for i := range trends {
		t := &trends[i]
		delta := "-"
		if t.MedianDeltaPercent != nil {
			delta = fmt.Sprintf("%+.1f%%", *t.MedianDeltaPercent*100)
		}
		tw.writef("%s\t%d\t$%.2f\t$%.2f\t$%.2f\t%s\t%s\n",
			t.Make,
			t.SampleCount,
			t.P25,
			t.MedianPrice,
			t.P75,
			delta,
			t.ComputedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return tw.finish()
}

func printJobRunsTable(runs []domain.JobRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("JOB\tSTATUS\tSTARTED\tCOMPLETED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.JobName,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			completed,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func printImportReport(r *domain.ImportReport) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Added:\t%d\n", r.Added)
	tw.writef("Merged:\t%d\n", r.Merged)
	tw.writef("Conflicted:\t%d\n", r.Conflicted)
	tw.writef("Rejected:\t%d\n", r.Rejected)
	tw.writef("Total:\t%d\n", r.Total())
	return tw.finish()
}

func printSystemState(s *domain.SystemState) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Listings:\t%d\n", s.ListingsTotal)
	tw.writef("  Pending:\t%d\n", s.ListingsPending)
	tw.writef("  Complete:\t%d\n", s.ListingsComplete)
	tw.writef("  Analyzed:\t%d\n", s.ListingsAnalyzed)
	tw.writef("Open Conflicts:\t%d\n", s.ConflictsOpen)
	tw.writef("Flagged Duplicates:\t%d\n", s.DuplicatesFlagged)
	tw.writef("Trend Snapshots:\t%d\n", s.TrendSnapshotsHeld)
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
