// Command clp-filter scans a filter pack against a query's equality terms,
// and builds filter packs from a manifest of per-archive filter files.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShangDanLuXian/clp/filterpack"
	"github.com/ShangDanLuXian/clp/query"
)

var rootCmd = &cobra.Command{
	Use:   "clp-filter [command] (flags)",
	Short: "filter pack scan/build tool",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(scanCmd, packCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Try --help for usage.")
		os.Exit(1)
	}
}

var (
	scanPackPath    string
	scanArchivesCSV string
	scanQuery       string
	scanOutputJSON  string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "scan filter pack for query terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanPackPath == "" {
			return fmt.Errorf("pack-path must be specified")
		}
		if scanArchivesCSV == "" {
			return fmt.Errorf("archives must be specified")
		}
		if scanQuery == "" {
			return fmt.Errorf("no query specified")
		}
		if scanOutputJSON == "" {
			return fmt.Errorf("output-json must be specified")
		}
		return runFilterScan(scanPackPath, splitArchives(scanArchivesCSV), scanQuery, scanOutputJSON)
	},
}

var (
	packOutputPath   string
	packManifestPath string
	packOutputJSON   string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "build a filter pack from a manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if packOutputPath == "" {
			return fmt.Errorf("output must be specified")
		}
		if packManifestPath == "" {
			return fmt.Errorf("manifest must be specified")
		}
		if packOutputJSON == "" {
			return fmt.Errorf("output-json must be specified")
		}
		return runFilterPack(packOutputPath, packManifestPath, packOutputJSON)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanPackPath, "pack-path", "", "path to filter pack file")
	scanCmd.Flags().StringVar(&scanArchivesCSV, "archives", "", "comma-separated archive ids")
	scanCmd.Flags().StringVarP(&scanQuery, "query", "q", "", "query to extract filter terms from")
	scanCmd.Flags().StringVar(&scanOutputJSON, "output-json", "", "write JSON output to file")

	packCmd.Flags().StringVarP(&packOutputPath, "output", "o", "", "output filter pack path")
	packCmd.Flags().StringVar(&packManifestPath, "manifest", "", "manifest file with archive_id and filter path per line")
	packCmd.Flags().StringVar(&packOutputJSON, "output-json", "", "write JSON output to file")
}

func splitArchives(csv string) []string {
	var out []string
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func emitJSON(v interface{}, outputPath string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

type scanOutput struct {
	Supported bool     `json:"supported"`
	Reason    string   `json:"reason,omitempty"`
	Passed    []string `json:"passed"`
	Total     int      `json:"total"`
	Skipped   int      `json:"skipped"`
}

func runFilterScan(packPath string, archiveIDs []string, queryText string, outputJSONPath string) error {
	if len(archiveIDs) == 0 {
		return emitJSON(scanOutput{Supported: true, Passed: []string{}}, outputJSONPath)
	}

	expr, err := query.ParseExpression(queryText)
	if err != nil {
		return fmt.Errorf("failed to parse query for filter scan: %w", err)
	}

	f, err := os.Open(packPath)
	if err != nil {
		return fmt.Errorf("failed to read filter pack %s: %w", packPath, err)
	}
	defer f.Close()
	packBytes, err := query.ReadPackBytes(f)
	if err != nil {
		return fmt.Errorf("failed to read filter pack %s: %w", packPath, err)
	}

	pack, err := filterpack.ReadPack(bytes.NewReader(packBytes), int64(len(packBytes)))
	if err != nil {
		return fmt.Errorf("failed to parse filter pack %s: %w", packPath, err)
	}

	result, _ := query.ScanArchives(expr, archiveIDs, pack, packBytes, nil)
	out := scanOutput{
		Supported: result.Supported,
		Reason:    result.Reason,
		Passed:    result.Passed,
		Total:     result.Total,
		Skipped:   result.Skipped,
	}
	if out.Passed == nil {
		out.Passed = []string{}
	}
	return emitJSON(out, outputJSONPath)
}

type packOutput struct {
	NumFilters  int    `json:"num_filters"`
	Size        int64  `json:"size"`
	IndexOffset uint64 `json:"index_offset"`
	IndexSize   uint64 `json:"index_size"`
}

func runFilterPack(outputPath, manifestPath, outputJSONPath string) error {
	inputs, err := readPackManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read pack manifest %s: %w", manifestPath, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to open output pack file: %w", err)
	}

	entries := make([]filterpack.Entry, len(inputs))
	for i, in := range inputs {
		path := in.path
		entries[i] = filterpack.Entry{
			ArchiveID: in.archiveID,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		}
	}

	total, err := filterpack.Build(out, entries)
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to build filter pack %s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize pack file: %w", err)
	}

	readBack, err := os.Open(outputPath)
	if err != nil {
		return fmt.Errorf("failed to reopen pack file for verification: %w", err)
	}
	defer readBack.Close()
	pack, err := filterpack.ReadPack(readBack, total)
	if err != nil {
		return fmt.Errorf("failed to verify written pack file: %w", err)
	}

	return emitJSON(packOutput{
		NumFilters:  len(entries),
		Size:        total,
		IndexOffset: pack.Footer.IndexOffset,
		IndexSize:   pack.Footer.IndexSize,
	}, outputJSONPath)
}

type manifestEntry struct {
	archiveID string
	path      string
}

func readPackManifest(path string) ([]manifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []manifestEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tabPos := strings.IndexByte(line, '\t')
		if tabPos < 0 {
			return nil, fmt.Errorf("invalid manifest line %d", lineNo)
		}
		archiveID, path := line[:tabPos], line[tabPos+1:]
		if archiveID == "" || path == "" {
			return nil, fmt.Errorf("invalid manifest line %d", lineNo)
		}
		entries = append(entries, manifestEntry{archiveID: archiveID, path: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest contains no entries")
	}
	return entries, nil
}
