package handlers

import (
	"context"
	"fmt"
	"strconv"

	"collegecontent/internal/collegedb"
	"collegecontent/internal/core"

	"github.com/spf13/cobra"
)

// NewCollegesCmd creates the colleges command group
func NewCollegesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "colleges",
		Short: "Browse the college database",
	}
	cmd.AddCommand(newCollegesSearchCmd())
	return cmd
}

func newCollegesSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search active colleges by name, city or state",
		Example: `  collegecontent colleges search bombay
  collegecontent colleges search pune --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollegesSearch(cmd.Context(), args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	return cmd
}

func runCollegesSearch(ctx context.Context, term string, limit int) error {
	rt, err := openRuntime(ctx, runtimeOptions{store: true, requireData: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := collegedb.SearchColleges(ctx, rt.store, term, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("No colleges match %q", term)))
		return nil
	}
	heading("%d colleges matching %q", len(records), term)
	fmt.Println(collegeTable(records))
	return nil
}

func collegeTable(records []core.CollegeRecord) string {
	rows := [][]string{{"ID", "NAME", "CITY", "STATE", "EST."}}
	for _, r := range records {
		year := "-"
		if r.EstablishedYear != nil {
			year = strconv.Itoa(*r.EstablishedYear)
		}
		rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Name, r.City, r.State, year})
	}
	return table(rows)
}
