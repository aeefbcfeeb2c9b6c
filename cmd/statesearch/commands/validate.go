package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/config"
)

// validation is the result for one scenario file.
type validation struct {
	File       string   `json:"file" yaml:"file"`
	Scenario   string   `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	Strategies int      `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	Valid      bool     `json:"valid" yaml:"valid"`
	Errors     []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files",
		Long: `Validate scenario files without running them.

This command checks:
  - YAML or CUE syntax
  - Schema conformance
  - Field constraints such as strategy names and bounds
  - That the problem can be built, including Starlark scripts`,
		Example: `  # Validate every bundled scenario
  statesearch validate scenarios/*.yaml scenarios/*.cue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			results := make([]validation, 0, len(args))
			invalid := 0
			for _, path := range args {
				v := validation{File: path}
				inst, err := loadInstance(ctx, path)
				if err != nil {
					invalid++
					v.Errors = describe(err)
				} else {
					v.Valid = true
					v.Scenario = inst.Scenario.Name
					v.Strategies = len(inst.Scenario.Strategies)
				}
				results = append(results, v)
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				if err := writeStructured(w, results); err != nil {
					return err
				}
			} else {
				for _, v := range results {
					if v.Valid {
						fmt.Fprintf(w, "ok       %s (%s, %d strategies)\n", v.File, v.Scenario, v.Strategies)
						continue
					}
					fmt.Fprintf(w, "invalid  %s\n", v.File)
					for _, e := range v.Errors {
						fmt.Fprintf(w, "         %s\n", e)
					}
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d scenarios invalid", invalid, len(args))
			}
			return nil
		},
	}

	return cmd
}

// describe lists every field error of a validation failure.
func describe(err error) []string {
	var ve config.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]string, len(ve))
		for i := range ve {
			out[i] = ve[i].String()
		}
		return out
	}
	return []string{err.Error()}
}
