package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/search"
)

type strategyInfo struct {
	Name     string `json:"name" yaml:"name"`
	Informed bool   `json:"informed" yaml:"informed"`
}

func newStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available search strategies",
		Long: `List the strategy names accepted in scenario files and by --strategy.

Informed strategies need a heuristic, which the scenario's problem domain
or Starlark script supplies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := search.Strategies()
			infos := make([]strategyInfo, len(names))
			for i, name := range names {
				infos[i] = strategyInfo{Name: name, Informed: search.Informed(name)}
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				return writeStructured(w, infos)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STRATEGY\tHEURISTIC")
			for _, info := range infos {
				need := "-"
				if info.Informed {
					need = "required"
				}
				fmt.Fprintf(tw, "%s\t%s\n", info.Name, need)
			}
			return tw.Flush()
		},
	}
}
