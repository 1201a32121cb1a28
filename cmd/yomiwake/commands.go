package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/yomiwake/pkg/analyzer"
	"github.com/japaniel/yomiwake/pkg/classify"
	"github.com/japaniel/yomiwake/pkg/knowledge"
	"github.com/japaniel/yomiwake/pkg/readerer"
	"github.com/japaniel/yomiwake/pkg/snapshot"
	"github.com/japaniel/yomiwake/pkg/subject"
)

func newLessonsCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "Classify the vocabulary waiting in the lesson queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" && !validStatus(status) {
				return fmt.Errorf("unknown status %q", status)
			}
			ctx := cmd.Context()
			an, _, closeStore, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := an.Run(ctx)
			if err != nil {
				return err
			}
			if status != "" {
				report.Items = filterItems(report.Items, status)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show items with this status (easy, new-reading, known-reading)")
	return cmd
}

func validStatus(s string) bool {
	for _, st := range []classify.Status{classify.Easy, classify.NewReading, classify.KnownReading} {
		if st.String() == s {
			return true
		}
	}
	return false
}

func filterItems(items []analyzer.Item, status string) []analyzer.Item {
	var out []analyzer.Item
	for _, it := range items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <word> [reading]",
		Short: "Show how a word's reading splits over its kanji",
		Long: "Attributes the reading of a word to its kanji using the loaded kanji set and " +
			"reports which secondary readings are new. Without a reading, one is guessed with kagome.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			word := args[0]
			var reading string
			if len(args) == 2 {
				reading = args[1]
			} else {
				ra, err := readerer.NewAnalyzer()
				if err != nil {
					return fmt.Errorf("create analyzer: %w", err)
				}
				reading = ra.Guess(word)
				a.log.Debug().Str("word", word).Str("reading", reading).Msg("reading guessed")
			}

			ctx := cmd.Context()
			an, _, closeStore, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			session, err := an.Open(ctx)
			if err != nil {
				return err
			}
			if _, err := an.Refresh(ctx, session); err != nil {
				return err
			}
			item, err := session.ClassifyWord(word, reading)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			return printExplanation(cmd.OutOrStdout(), item)
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	var limit, workers int
	cmd := &cobra.Command{
		Use:   "scan <url|file>",
		Short: "Find studied and queued vocabulary in a web article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := args[0]

			var (
				page    []byte
				pageURL string
				err     error
			)
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				pageURL = target
				page, err = readerer.Fetch(ctx, nil, target)
			} else {
				page, err = os.ReadFile(target)
			}
			if err != nil {
				return err
			}

			an, p, closeStore, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			session, err := an.Open(ctx)
			if err != nil {
				return err
			}
			if _, err := an.Refresh(ctx, session); err != nil {
				return err
			}
			vocab, err := knownVocabulary(cmd, p)
			if err != nil {
				return err
			}

			ra, err := readerer.NewAnalyzer()
			if err != nil {
				return fmt.Errorf("create analyzer: %w", err)
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Scan.Workers
			}
			scanner := readerer.NewScanner(ra, session, vocab, readerer.ScannerOptions{Workers: workers, Logger: a.log})
			report, err := scanner.Scan(ctx, page, pageURL)
			if err != nil {
				return err
			}
			if limit > 0 && len(report.Hits) > limit {
				report.Hits = report.Hits[:limit]
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printScan(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many words (0 for all)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Sentence analysis workers (default number of CPUs)")
	return cmd
}

// knownVocabulary lists every started or queued vocabulary item.
func knownVocabulary(cmd *cobra.Command, p analyzer.Provider) ([]subject.Vocabulary, error) {
	ctx := cmd.Context()
	events, err := p.StartedVocabulary(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("fetch study history: %w", err)
	}
	pending, err := p.PendingVocabulary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch lesson queue: %w", err)
	}
	out := make([]subject.Vocabulary, 0, len(events)+len(pending))
	for _, ev := range events {
		out = append(out, ev.Vocabulary)
	}
	return append(out, pending...), nil
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the knowledge cache",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the learned secondary readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore := a.openStore(ctx)
			defer closeStore()

			cache := knowledge.Load(ctx, store, knowledge.Options{Key: a.cfg.Store.CacheKey, Logger: a.log})
			view := cacheView{
				Mode:      cache.Mode().String(),
				Watermark: cache.Watermark(),
				Pairs:     cache.Len(),
				Readings:  cache.Snapshot(),
			}
			if h, ok := store.(updateHistory); ok {
				runs, err := h.RecentUpdates(ctx, 10)
				if err != nil {
					a.log.Warn().Err(err).Msg("failed to read update history")
				}
				view.Updates = runs
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return printCache(cmd.OutOrStdout(), view)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget every learned reading and the watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore := a.openStore(ctx)
			defer closeStore()

			cache := knowledge.Load(ctx, store, knowledge.Options{Key: a.cfg.Store.CacheKey, Logger: a.log})
			if err := cache.Reset(ctx); err != nil {
				return fmt.Errorf("reset knowledge cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "knowledge cache cleared")
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the account's kanji, study history and lesson queue to a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.WaniKani.Token == "" {
				return errors.New("export needs an API token: set WANIKANI_API_TOKEN")
			}
			doc, err := snapshot.Capture(cmd.Context(), a.apiClient())
			if err != nil {
				return err
			}
			if err := doc.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d kanji, %d started, %d pending\n",
				out, len(doc.Characters), len(doc.Started), len(doc.Pending))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "yomiwake-snapshot.json", "Snapshot file to write")
	return cmd
}
