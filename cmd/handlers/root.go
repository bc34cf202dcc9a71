/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"collegecontent/internal/config"
	"collegecontent/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	provider string
	model    string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "collegecontent",
		Short: "Generate college content from the college database with an LLM.",
		Long: `collegecontent turns a free-text request such as "top engineering colleges
in Pune" into a finished article. It fetches matching colleges, proposes
topics and prompts, drafts an outline and writes the content with the
configured model backend.

Run a whole session non-interactively with 'collegecontent generate', or
expose the staged workflow over HTTP with 'collegecontent serve'.`,
		SilenceUsage: true,
	}

	// Initialize configuration
	cobra.OnInitialize(initConfig)

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.collegecontent.yaml)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "model backend: openai, gemini, claude, grok (default from config)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model name (default from config or the backend default)")

	// Add subcommands
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewExtractCmd())
	rootCmd.AddCommand(NewCollegesCmd())
	rootCmd.AddCommand(NewCSVCmd())
	rootCmd.AddCommand(NewCheckCmd())
	rootCmd.AddCommand(NewContentTypesCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Load configuration using the centralized config module
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)

	// Show which config file is being used (if any)
	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
}
