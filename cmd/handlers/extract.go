package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"collegecontent/internal/core"
	"collegecontent/internal/datafetch"
	"collegecontent/internal/query"

	"github.com/spf13/cobra"
)

// NewExtractCmd creates the extract command
func NewExtractCmd() *cobra.Command {
	var (
		fetch  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "extract <request>",
		Short: "Show the filters derived from a free-text request",
		Long: `Show which college filters a request resolves to, without calling the model.

Examples:
  collegecontent extract "top 5 engineering colleges in Pune"
  collegecontent extract "college 42" --fetch
  collegecontent extract "colleges in Maharashtra" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), args[0], fetch, asJSON)
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "also run the query against the college database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func runExtract(ctx context.Context, request string, fetch, asJSON bool) error {
	rt, err := openRuntime(ctx, runtimeOptions{store: fetch, requireData: fetch})
	if err != nil {
		return err
	}
	defer rt.Close()

	filters := query.NewExtractor(rt.cfg.Query.DefaultCap, rt.cfg.Query.MaxCap).Extract(request)

	var result *core.FetchResult
	if fetch {
		r, err := datafetch.New(rt.store).Fetch(ctx, filters)
		if err != nil && !errors.Is(err, core.ErrNoResults) {
			return err
		}
		result = &r
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if result != nil {
			return enc.Encode(result)
		}
		return enc.Encode(filters)
	}

	heading("Filters (%s)", filters.Driver())
	rows := [][]string{{"FIELD", "VALUE"}}
	if filters.ID != nil {
		rows = append(rows, []string{"id", strconv.FormatInt(*filters.ID, 10)})
	}
	if len(filters.IDs) > 0 {
		rows = append(rows, []string{"ids", fmt.Sprint(filters.IDs)})
	}
	for _, kv := range [][2]string{
		{"city", filters.City},
		{"state", filters.State},
		{"keyword", filters.Keyword},
		{"order", string(filters.Order)},
	} {
		if kv[1] != "" {
			rows = append(rows, []string{kv[0], kv[1]})
		}
	}
	rows = append(rows, []string{"cap", strconv.Itoa(filters.Cap)})
	if len(filters.Categories) > 0 {
		rows = append(rows, []string{"categories", fmt.Sprint(filters.Categories)})
	}
	fmt.Println(table(rows))

	if result != nil {
		heading("%d colleges", len(result.Records))
		if len(result.Records) > 0 {
			fmt.Println(collegeTable(result.Records))
		}
	}
	return nil
}
