// Command clp-search exposes the filter-scan step of the skip decision
// pipeline for use from inside the archive search binary.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShangDanLuXian/clp/filterpack"
	"github.com/ShangDanLuXian/clp/query"
)

var rootCmd = &cobra.Command{
	Use:   "clp-search [command] (flags)",
	Short: "archive search support tool",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(filterScanCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Try --help for usage.")
		os.Exit(1)
	}
}

var (
	filterScanPackPath string
	filterScanArchives string
	filterScanQuery    string
	filterScanOutput   string
)

var filterScanCmd = &cobra.Command{
	Use:   "filter-scan",
	Short: "scan a filter pack's archive tier for query terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		if filterScanPackPath == "" {
			return fmt.Errorf("pack-path must be specified")
		}
		if filterScanArchives == "" {
			return fmt.Errorf("archives must be specified")
		}
		if filterScanQuery == "" {
			return fmt.Errorf("no query specified")
		}
		if filterScanOutput == "" {
			return fmt.Errorf("output-json must be specified")
		}
		return runFilterScan(filterScanPackPath, splitArchives(filterScanArchives), filterScanQuery, filterScanOutput)
	},
}

func init() {
	filterScanCmd.Flags().StringVar(&filterScanPackPath, "pack-path", "", "path to filter pack file")
	filterScanCmd.Flags().StringVar(&filterScanArchives, "archives", "", "comma-separated archive ids")
	filterScanCmd.Flags().StringVarP(&filterScanQuery, "query", "q", "", "query to extract filter terms from")
	filterScanCmd.Flags().StringVar(&filterScanOutput, "output-json", "", "write JSON output to file")
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

func emitJSON(v interface{}, outputPath string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}
