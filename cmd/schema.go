package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/resume-evaluator/internal/evaluator"
)

var schemaCmd = &cobra.Command{
	Use:       "schema [candidate|job|fit]",
	Short:     "Print the JSON Schema a stage output is validated against",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: evaluator.SchemaAliases(),
	RunE: func(cmd *cobra.Command, args []string) error {
		aliases := evaluator.SchemaAliases()
		if len(args) == 1 {
			aliases = args
		}

		for i, alias := range aliases {
			s, ok := evaluator.SchemaFor(alias)
			if !ok {
				return fmt.Errorf("%w: unknown schema %q, expected one of %s",
					evaluator.ErrInvalidInput, alias, strings.Join(evaluator.SchemaAliases(), ", "))
			}
			if len(aliases) > 1 {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", s.Name())
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Render())
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
