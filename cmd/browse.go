package cmd

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/agent"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/browser"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/llmclient"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/observability"
)

const defaultGoal = "Go to example.com and tell me what you see on the page"

// newBrowseCmd creates and configures the `browse` command: a one-shot agent
// run against a natural-language goal.
func newBrowseCmd() *cobra.Command {
	var jsonOutput bool

	browseCmd := &cobra.Command{
		Use:   "browse [goal]",
		Short: "Runs the browsing agent against a goal and prints the result",
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			bindings := map[string]string{
				"agent.llm.provider":     "provider",
				"agent.llm.model":        "model",
				"agent.llm.endpoint":     "endpoint",
				"agent.max_iterations":   "max-iterations",
				"agent.run_timeout":      "timeout",
				"browser.headless":       "headless",
				"browser.screenshot_dir": "screenshot-dir",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Flags are bound now; reload so they take effect.
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			goal := defaultGoal
			if len(args) > 0 {
				goal = strings.Join(args, " ")
			}

			provider, err := llmclient.NewProvider(cfg.Agent.LLM, logger)
			if err != nil {
				return err
			}

			manager := browser.NewManager(ctx, cfg.Browser, logger)
			defer manager.Shutdown()

			session, err := manager.NewSession(ctx)
			if err != nil {
				return fmt.Errorf("starting browser session: %w", err)
			}
			defer func() {
				if err := session.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("Browser session close failed.", zap.Error(err))
				}
			}()

			loop := agent.NewLoop(cfg.Agent, provider, session, logger)
			report := loop.Run(ctx, goal)

			if jsonOutput {
				out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("serializing report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			} else {
				printReport(cmd, report)
			}

			if report.FinalState == schemas.RunStateFailed {
				return fmt.Errorf("run failed: %s", report.Result)
			}
			return nil
		},
	}

	browseCmd.Flags().String("provider", "", "llm provider (openai, anthropic, ollama, gemini)")
	browseCmd.Flags().String("model", "", "llm model name")
	browseCmd.Flags().String("endpoint", "", "llm endpoint base URL")
	browseCmd.Flags().Int("max-iterations", 15, "iteration budget for the run")
	browseCmd.Flags().Duration("timeout", 0, "overall run timeout (0 uses the configured default)")
	browseCmd.Flags().Bool("headless", true, "run the browser headless")
	browseCmd.Flags().String("screenshot-dir", "", "directory screenshots are written to")
	browseCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the full run report as JSON")

	return browseCmd
}

func printReport(cmd *cobra.Command, report *schemas.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Success:    %v\n", report.Success)
	fmt.Fprintf(out, "State:      %s\n", report.FinalState)
	fmt.Fprintf(out, "Iterations: %d\n", report.Iterations)
	fmt.Fprintf(out, "Result:     %s\n", report.Result)
	for _, path := range report.Screenshots {
		fmt.Fprintf(out, "Screenshot: %s\n", path)
	}
}
