package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/japaniel/yomiwake/pkg/analyzer"
	"github.com/japaniel/yomiwake/pkg/classify"
	"github.com/japaniel/yomiwake/pkg/db"
	"github.com/japaniel/yomiwake/pkg/match"
	"github.com/japaniel/yomiwake/pkg/readerer"
)

// updateHistory is implemented by stores that keep an update audit trail.
type updateHistory interface {
	RecentUpdates(ctx context.Context, limit int) ([]db.UpdateRun, error)
}

type cacheView struct {
	Mode      string           `json:"mode"`
	Watermark time.Time        `json:"watermark"`
	Pairs     int              `json:"pairs"`
	Readings  map[int][]string `json:"readings"`
	Updates   []db.UpdateRun   `json:"updates,omitempty"`
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatSteps(steps []match.Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = s.Glyph + ":" + s.Reading
	}
	return strings.Join(parts, " ")
}

func printReport(w io.Writer, r *analyzer.Report) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tWORD\tREADING\tSTATUS\tNEW READINGS")
	for _, it := range r.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Characters, it.Reading, it.Status, formatSteps(it.Result.Unfamiliar))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := r.Counts()
	_, err := fmt.Fprintf(w, "\n%d lessons: %d easy, %d new-reading, %d known-reading (cache %s, %d readings learned this run)\n",
		len(r.Results), counts[classify.Easy], counts[classify.NewReading], counts[classify.KnownReading],
		r.CacheMode, r.Update.Added)
	return err
}

func printExplanation(w io.Writer, it analyzer.Item) error {
	fmt.Fprintf(w, "%s [%s]: %s\n", it.Characters, it.Reading, it.Status)
	if !it.Result.Matched {
		_, err := fmt.Fprintln(w, "  the reading could not be split over the known kanji")
		return err
	}
	unfamiliar := make(map[string]bool, len(it.Result.Unfamiliar))
	for _, s := range it.Result.Unfamiliar {
		unfamiliar[s.Glyph+s.Reading] = true
	}
	tw := newTable(w)
	for _, s := range it.Result.Steps {
		kind := "primary"
		switch {
		case unfamiliar[s.Glyph+s.Reading]:
			kind = "secondary, new"
		case !s.Primary:
			kind = "secondary, known"
		}
		fmt.Fprintf(tw, "  %s\t%s\t(%s)\n", s.Glyph, s.Reading, kind)
	}
	return tw.Flush()
}

func printScan(w io.Writer, r *readerer.ScanReport) error {
	fmt.Fprintf(w, "%s\n%d sentences, %d tokens, %d known words\n\n", r.Title, r.Sentences, r.Tokens, len(r.Hits))
	tw := newTable(w)
	fmt.Fprintln(tw, "COUNT\tWORD\tREADING\tSTATUS")
	for _, h := range r.Hits {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", h.Count, h.Characters, h.Reading, h.Status)
	}
	return tw.Flush()
}

func printCache(w io.Writer, v cacheView) error {
	watermark := "never"
	if !v.Watermark.IsZero() {
		watermark = v.Watermark.Local().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "mode: %s\nwatermark: %s\npairs: %d\n", v.Mode, watermark, v.Pairs)

	ids := make([]int, 0, len(v.Readings))
	for id := range v.Readings {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	tw := newTable(w)
	for _, id := range ids {
		fmt.Fprintf(tw, "  %d\t%s\n", id, strings.Join(v.Readings[id], "、"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(v.Updates) > 0 {
		fmt.Fprintln(w, "\nrecent updates:")
		tw = newTable(w)
		for _, u := range v.Updates {
			fmt.Fprintf(tw, "  %s\teligible %d\tmatched %d\tadded %d\n",
				u.RanAt.Local().Format(time.RFC3339), u.Eligible, u.Matched, u.Added)
		}
		return tw.Flush()
	}
	return nil
}
