package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"collegecontent/internal/llm"
	"collegecontent/internal/trends"

	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test the database and model backend connections",
		Long: `Test the connections the content pipeline depends on. With --all, every
model backend that has an API key configured is tested, not only the
selected one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "test every configured model backend")
	return cmd
}

func runCheck(ctx context.Context, all bool) error {
	rt, err := openRuntime(ctx, runtimeOptions{store: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	rows := [][]string{{"COMPONENT", "TARGET", "STATUS", "LATENCY"}}
	failed := 0
	add := func(name, target string, check func(context.Context) bool) {
		start := time.Now()
		ok := check(ctx)
		if !ok {
			failed++
		}
		rows = append(rows, []string{name, target, status(ok), time.Since(start).Round(time.Millisecond).String()})
	}

	dbTarget := rt.cfg.Database.Driver
	if rt.store == nil {
		rows = append(rows, []string{"database", dbTarget, status(false), "-"})
		failed++
	} else {
		add("database", dbTarget, rt.store.TestConnection)
		stats := rt.store.Stats()
		rows = append(rows, []string{"  pool", "open/max", strconv.Itoa(stats.OpenConnections) + "/" + strconv.Itoa(stats.MaxOpenConnections), "-"})
	}

	providers := []string{provider}
	if all {
		providers = nil
		for _, p := range llm.Providers() {
			if p != llm.ProviderMock && rt.cfg.LLM.Credentials(string(p)).APIKey != "" {
				providers = append(providers, string(p))
			}
		}
	}
	for _, p := range providers {
		settings, err := llm.SettingsFromConfig(rt.cfg.LLM, p, model)
		if err != nil {
			rows = append(rows, []string{"llm", p, status(false), err.Error()})
			failed++
			continue
		}
		gw, err := llm.New(ctx, settings)
		if err != nil {
			rows = append(rows, []string{"llm", string(settings.Provider), status(false), err.Error()})
			failed++
			continue
		}
		add("llm", llm.Describe(gw), gw.TestConnection)
		if c, ok := gw.(interface{ Close() error }); ok {
			c.Close()
		}
	}

	if rt.cfg.Trends.Provider != "" && rt.cfg.Trends.Provider != "none" {
		tp, err := trends.New(ctx, rt.cfg.Trends)
		if err != nil {
			rows = append(rows, []string{"trends", rt.cfg.Trends.Provider, status(false), err.Error()})
			failed++
		} else {
			rows = append(rows, []string{"trends", tp.Name(), okStyle.Render("configured"), "-"})
			trends.Close(tp)
		}
	}

	heading("Connection check")
	fmt.Println(table(rows))
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
