package main

import (
	"errors"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Validate, execute or graph a plan",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a plan against the capability registry",
	Long: `Validates a plan read from a JSON or YAML file ("-" for stdin), or one
generated for --goal, and reports every problem found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := planOptions(cmd, args)
		if err != nil {
			return err
		}
		return cli.ValidatePlan(opts)
	},
}

var planExecCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Execute a plan without consulting the reasoning service",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := planOptions(cmd, args)
		if err != nil {
			return err
		}
		return cli.ExecPlan(opts)
	},
}

var planGraphCmd = &cobra.Command{
	Use:   "graph [file]",
	Short: "Print a plan as a Mermaid graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := planOptions(cmd, args)
		if err != nil {
			return err
		}
		return cli.GraphPlan(opts)
	},
}

func planOptions(cmd *cobra.Command, args []string) (cli.PlanOptions, error) {
	configPath, debug := globalFlags(cmd)
	goal, _ := cmd.Flags().GetString("goal")
	inputs, _ := cmd.Flags().GetString("inputs")
	graph, _ := cmd.Flags().GetBool("graph")
	jsonMode, _ := cmd.Flags().GetBool("json")

	opts := cli.PlanOptions{
		ConfigPath: configPath,
		Debug:      debug,
		Goal:       goal,
		Inputs:     inputs,
		Graph:      graph,
		JSON:       jsonMode,
		Input:      cmd.InOrStdin(),
		Output:     cmd.OutOrStdout(),
	}
	if len(args) > 0 {
		opts.File = args[0]
	}
	if (opts.File == "") == (opts.Goal == "") {
		return opts, &cli.UsageError{Err: errors.New("provide either a plan file or --goal")}
	}
	return opts, nil
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd, planExecCmd, planGraphCmd)

	planCmd.PersistentFlags().StringP("goal", "g", "", "Generate the plan for this goal instead of reading a file")
	planCmd.PersistentFlags().String("inputs", "", "Plan inputs as a JSON object")
	planCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
	planExecCmd.Flags().Bool("graph", false, "Print the executed plan as a Mermaid graph with the run overlay")
}
