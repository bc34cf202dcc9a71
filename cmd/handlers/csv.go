package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"collegecontent/internal/core"
	"collegecontent/internal/csvio"
	"collegecontent/internal/datafetch"
	"collegecontent/internal/query"

	"github.com/spf13/cobra"
)

// NewCSVCmd creates the csv command group
func NewCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Import and export college spreadsheets",
		Long: `Read and write the spreadsheet form of college records. The sheet has the columns

  ID, Name, City, State, Active, Verified, Accreditations, Facilities, Website

Exported sheets can be edited and fed back with 'collegecontent generate --csv'.`,
	}
	cmd.AddCommand(newCSVImportCmd())
	cmd.AddCommand(newCSVExportCmd())
	return cmd
}

func newCSVImportCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Validate a college sheet and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCSVImport(args[0], list)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "also list the imported colleges")
	return cmd
}

func runCSVImport(path string, list bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	records, err := csvio.Import(f)
	if err != nil {
		return err
	}
	stats := csvio.Summarize(records)

	heading("Imported %s", path)
	fmt.Println(table([][]string{
		{"TOTAL", "ACTIVE", "VERIFIED", "STATES"},
		{strconv.Itoa(stats.Total), strconv.Itoa(stats.Active), strconv.Itoa(stats.Verified), strconv.Itoa(stats.States)},
	}))
	if list && len(records) > 0 {
		fmt.Println(collegeTable(records))
	}
	return nil
}

func newCSVExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <request>",
		Short: "Export the colleges matching a request as a sheet",
		Example: `  collegecontent csv export "colleges in Pune" -o pune.csv
  collegecontent csv export "top 50 colleges in Maharashtra"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCSVExport(cmd.Context(), args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func runCSVExport(ctx context.Context, request, output string) error {
	rt, err := openRuntime(ctx, runtimeOptions{store: true, requireData: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	filters := query.NewExtractor(rt.cfg.Query.DefaultCap, rt.cfg.Query.MaxCap).Extract(request)
	result, err := datafetch.New(rt.store).Fetch(ctx, filters)
	if errors.Is(err, core.ErrNoResults) {
		fmt.Fprintln(os.Stderr, warnStyle.Render("No matching colleges; writing the header only"))
	} else if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := csvio.Export(w, result.Records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "%s %d colleges to %s\n", okStyle.Render("Exported"), len(result.Records), output)
	}
	return nil
}
