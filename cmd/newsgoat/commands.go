package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/scraper"
)

// sourcesCmd lists the built-in scrapers and their configuration.
func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List sources and whether they are enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Kind", "Enabled", "URL", "Max Items"})
			for _, info := range scraper.DefaultRegistry(logger).List() {
				src := cfg.Source(info.Name)
				t.AppendRow(table.Row{info.Name, info.Kind, src.Enabled, src.URL, src.MaxItems})
			}
			t.Render()
			return nil
		},
	}
}

// regionsCmd groups commands that inspect the keyphrase table.
func regionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Inspect the region keyphrase table",
	}

	loadIndex := func() (*config.Config, []region.Entry, *region.Tagger, error) {
		cfg, logger, err := loadConfig()
		if err != nil {
			return nil, nil, nil, err
		}
		entries, err := region.Load(cfg.Regions.KeyphraseFile)
		if err != nil {
			return nil, nil, nil, err
		}
		idx := region.NewBuilder(logger).AddEntries(entries).Build()
		return cfg, entries, region.NewTagger(idx, region.TaggerOptions{FoldCase: cfg.Regions.FoldCase}), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tag [text...]",
		Short: "Print the regions a text would be tagged with",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, tagger, err := loadIndex()
			if err != nil {
				return err
			}
			codes := tagger.Tag(strings.Join(args, " "))
			if len(codes) == 0 {
				fmt.Println("(no regions)")
				return nil
			}
			fmt.Println(strings.Join(codes, " "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [code...]",
		Short: "Show regions and their keyphrases",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, entries, tagger, err := loadIndex()
			if err != nil {
				return err
			}
			lookup := region.NewLookup(entries)
			codes := tagger.Index().Regions()
			if len(args) > 0 {
				codes = codes[:0]
				for _, arg := range args {
					code, err := lookup.Code(arg)
					if err != nil {
						return err
					}
					codes = append(codes, code)
				}
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Code", "Name", "Keyphrases"})
			for _, code := range codes {
				t.AppendRow(table.Row{code, lookup.Name(code), strings.Join(tagger.Index().Keyphrases(code), ", ")})
			}
			t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
			t.Render()
			return nil
		},
	})

	return cmd
}

// keyphrasesCmd groups commands that precompute the keyphrase table.
func keyphrasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyphrases",
		Short: "Precompute the region keyphrase table",
	}

	var output string
	build := &cobra.Command{
		Use:   "build",
		Short: "Add billionaire names per country to the keyphrase table",
		Long: `Fetch the billionaires list, group names by country of citizenship and
merge them into the configured (or embedded) keyphrase table. The result is
written to --output and can be used via regions.keyphrase_file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			base, err := region.Load(cfg.Regions.KeyphraseFile)
			if err != nil {
				return err
			}

			httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
			if err != nil {
				return fmt.Errorf("create fetcher: %w", err)
			}
			gate := fetcher.NewGate(httpFetcher, nil, cfg, logger)
			defer gate.Close()

			src := cfg.Source(config.SourceForbes)
			if err := config.ValidateURL(src.URL); err != nil {
				return fmt.Errorf("sources.%s.url: %w", config.SourceForbes, err)
			}
			people, err := scraper.FetchBillionaires(context.Background(), gate.Session("keyphrases"),
				src, region.NewLookup(base), logger)
			if err != nil {
				return err
			}

			var extra []region.Entry
			for code, names := range scraper.GroupByRegion(people) {
				extra = append(extra, region.Entry{Code: code, Keyphrases: names})
			}
			if err := region.WriteFile(output, region.Merge(base, extra)); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Printf("wrote %s: %d names across %d regions\n", output, len(people), len(extra))
			return nil
		},
	}
	build.Flags().StringVarP(&output, "output", "o", "./keyphrases.yaml", "output file (.yaml or .json)")
	cmd.AddCommand(build)

	return cmd
}
