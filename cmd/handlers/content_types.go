package handlers

import (
	"fmt"
	"strings"

	"collegecontent/internal/contenttypes"

	"github.com/spf13/cobra"
)

// NewContentTypesCmd creates the content-types command
func NewContentTypesCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "content-types",
		Aliases: []string{"types"},
		Short:   "List the content types and prompt presets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := contenttypes.Default()

			heading("Content types")
			rows := [][]string{{"ID", "NAME", "WORDS", "TONE"}}
			for _, ct := range c.All() {
				rows = append(rows, []string{
					ct.ID,
					ct.Name,
					fmt.Sprintf("%d-%d", ct.Length.MinWords, ct.Length.MaxWords),
					ct.Tone,
				})
			}
			fmt.Println(table(rows))

			if verbose {
				for _, ct := range c.All() {
					fmt.Printf("%s %s\n  %s\n", titleStyle.Render(ct.ID), ct.Description,
						labelStyle.Render("Sections: "+strings.Join(ct.Sections, ", ")))
				}
			}

			heading("Prompt presets")
			rows = [][]string{{"ID", "NAME"}}
			for _, p := range c.Presets() {
				rows = append(rows, []string{p.ID, p.Name})
			}
			fmt.Println(table(rows))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show descriptions and typical sections")
	return cmd
}
