package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"collegecontent/internal/core"
	"collegecontent/internal/keywords"
	"collegecontent/internal/logger"
	"collegecontent/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateOptions holds the flags of the generate command
type generateOptions struct {
	contentType  string
	csvFile      string
	enrich       bool
	topicIndex   int
	customTopic  string
	promptFirst  bool
	promptIndex  int
	preset       string
	promptText   string
	withTrends   bool
	keywords     string
	keywordsFile string
	keywordsCol  string
	instructions string
	seo          bool
	output       string
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [request]",
		Short: "Run a whole content session without prompts",
		Long: `Run every stage of a content session in one go: extract filters from the
request, fetch the matching colleges, pick a topic and a prompt, build and
approve the outline and write the content.

The prompt comes from, in order of precedence: --prompt-text, --preset,
or the generated prompt variation at --prompt-index.

Examples:
  # Article about engineering colleges in Pune, written to stdout
  collegecontent generate "top engineering colleges in Pune"

  # FAQ page with SEO keywords, saved to a file
  collegecontent generate "colleges in Mumbai" --content-type faq_page \
    --keywords "best colleges mumbai, engineering admission" --seo -o mumbai.md

  # Skip the topic stage and use a preset prompt
  collegecontent generate "IIT Bombay" --prompt-first --preset admission_career

  # Use an exported CSV instead of the database
  collegecontent generate --csv colleges.csv --content-type comparison`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := ""
			if len(args) == 1 {
				request = args[0]
			}
			return runGenerate(cmd.Context(), request, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.contentType, "content-type", "c", "", "content type id (see 'collegecontent content-types')")
	cmd.Flags().StringVar(&opts.csvFile, "csv", "", "read colleges from a CSV file instead of the database")
	cmd.Flags().BoolVar(&opts.enrich, "enrich", false, "replace CSV rows with their database version when available")
	cmd.Flags().IntVar(&opts.topicIndex, "topic-index", 0, "index of the generated topic to select")
	cmd.Flags().StringVar(&opts.customTopic, "topic", "", "custom topic instead of a generated one")
	cmd.Flags().BoolVar(&opts.promptFirst, "prompt-first", false, "skip the topic stage")
	cmd.Flags().IntVar(&opts.promptIndex, "prompt-index", 0, "index of the generated prompt variation to use")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "prompt preset id")
	cmd.Flags().StringVar(&opts.promptText, "prompt-text", "", "custom prompt text")
	cmd.Flags().BoolVar(&opts.withTrends, "trends", false, "look up trend context before writing")
	cmd.Flags().StringVarP(&opts.keywords, "keywords", "k", "", "comma or newline separated SEO keywords")
	cmd.Flags().StringVar(&opts.keywordsFile, "keywords-file", "", "read SEO keywords from a .csv or .txt file")
	cmd.Flags().StringVar(&opts.keywordsCol, "keywords-column", "", "CSV column holding the keywords (default: first)")
	cmd.Flags().StringVar(&opts.instructions, "instructions", "", "extra instructions for the content stage")
	cmd.Flags().BoolVar(&opts.seo, "seo", false, "run the SEO enhancement after writing")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the markdown to this file instead of stdout")

	return cmd
}

func runGenerate(ctx context.Context, request string, opts generateOptions) error {
	if request == "" && opts.csvFile == "" {
		return fmt.Errorf("a request or --csv file is required")
	}
	if opts.customTopic != "" && opts.promptFirst {
		return fmt.Errorf("--topic and --prompt-first are mutually exclusive")
	}

	kws, err := loadKeywords(opts)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, runtimeOptions{gateway: true, store: true, trends: opts.withTrends})
	if err != nil {
		return err
	}
	defer rt.Close()
	orch := rt.orch

	// Data
	id, result, err := fetch(ctx, orch, request, opts)
	if errors.Is(err, core.ErrNoResults) {
		fmt.Fprintln(os.Stderr, warnStyle.Render("No matching colleges; continuing with general content"))
	} else if err != nil {
		return err
	}
	defer orch.EndSession(id)
	logger.Info("Data fetched", "session", id, "records", len(result.Records), "source", result.Source)

	if opts.withTrends {
		if _, err := orch.LoadTrends(ctx, id, ""); err != nil {
			return err
		}
	}

	// Topic
	if !opts.promptFirst {
		choice := pipeline.TopicChoice{Custom: opts.customTopic}
		if opts.customTopic == "" {
			candidates, err := orch.GenerateTopics(ctx, id, 0)
			if err != nil {
				return err
			}
			if opts.topicIndex < 0 || opts.topicIndex >= len(candidates) {
				return fmt.Errorf("--topic-index %d out of range, %d topics generated", opts.topicIndex, len(candidates))
			}
			idx := opts.topicIndex
			choice.Index = &idx
		}
		topic, err := orch.SelectTopic(id, choice)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", labelStyle.Render("Topic:"), topic.Topic)
	}

	// Prompt
	choice := pipeline.PromptChoice{Text: opts.promptText}
	if opts.promptText == "" && opts.preset != "" {
		choice.Preset = opts.preset
	}
	if choice.Text == "" && choice.Preset == "" {
		variations, err := orch.GeneratePrompts(ctx, id, request, 0)
		if err != nil {
			return err
		}
		if opts.promptIndex < 0 || opts.promptIndex >= len(variations) {
			return fmt.Errorf("--prompt-index %d out of range, %d prompts generated", opts.promptIndex, len(variations))
		}
		idx := opts.promptIndex
		choice.Index = &idx
	}
	def, err := orch.DefinePrompt(id, choice)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", labelStyle.Render("Prompt:"), firstLine(def.Text))

	// Outline
	outline, err := orch.BuildOutline(ctx, id)
	if err != nil {
		return err
	}
	if _, err := orch.ApproveOutline(id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s %s (%d sections)\n", labelStyle.Render("Outline:"), outline.Title, len(outline.Sections))

	// Content
	fc, err := orch.GenerateContent(ctx, id, pipeline.ContentOptions{
		Instructions: opts.instructions,
		Keywords:     kws,
	})
	if err != nil {
		return err
	}
	if opts.seo {
		if fc, err = orch.EnhanceSEO(ctx, id, nil); err != nil {
			return err
		}
	}

	return writeContent(fc, opts.output)
}

func fetch(ctx context.Context, orch *pipeline.Orchestrator, request string, opts generateOptions) (string, core.FetchResult, error) {
	if opts.csvFile == "" {
		return orch.FetchData(ctx, "", pipeline.FetchRequest{Request: request, ContentType: opts.contentType})
	}
	f, err := os.Open(opts.csvFile)
	if err != nil {
		return "", core.FetchResult{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()
	return orch.ImportCSV(ctx, "", f, pipeline.CSVRequest{
		Request:     request,
		ContentType: opts.contentType,
		Enrich:      opts.enrich,
	})
}

// loadKeywords merges --keywords and --keywords-file
func loadKeywords(opts generateOptions) ([]string, error) {
	kws := keywords.ParseManual(opts.keywords)
	if opts.keywordsFile == "" {
		return kws, nil
	}

	data, err := os.ReadFile(opts.keywordsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	var fromFile []string
	if strings.EqualFold(filepath.Ext(opts.keywordsFile), ".csv") {
		fromFile, err = keywords.ParseCSV(bytes.NewReader(data), opts.keywordsCol)
	} else {
		fromFile, err = keywords.ParseText(data)
	}
	if err != nil {
		return nil, err
	}
	return keywords.Clean(append(kws, fromFile...)), nil
}

func writeContent(fc core.FinalContent, output string) error {
	md := fc.Markdown
	if fc.SEO != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n%s %s\n",
			labelStyle.Render("Meta title:"), fc.SEO.MetaTitle,
			labelStyle.Render("Meta description:"), fc.SEO.MetaDescription)
	}
	if output == "" {
		fmt.Println(md)
		return nil
	}
	if err := os.WriteFile(output, []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", okStyle.Render("Content written to"), output)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
