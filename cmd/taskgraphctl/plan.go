package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.lepak.sg/taskgraph/internal/workflow"
)

func newPlanCommand(v *viper.Viper) *cobra.Command {
	var rootGroup string

	cmd := &cobra.Command{
		Use:   "plan <workflow.yaml>",
		Short: "Print the enumeration order a run would dispatch, without invoking any work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := workflow.Load(args[0])
			if err != nil {
				return err
			}

			groups, err := workflow.Build(doc)
			if err != nil {
				return err
			}

			if rootGroup == "" {
				rootGroup = doc.Groups[0].Name
			}
			g, ok := groups[rootGroup]
			if !ok {
				return fmt.Errorf("taskgraphctl: unknown group %q", rootGroup)
			}

			eff := g.EffectiveDAG()
			eff.PrepareForEnumeration()

			order := 1
			for !eff.Done() {
				e, ok := eff.GetNext()
				if !ok {
					return fmt.Errorf("taskgraphctl: enumeration stalled with entries still pending")
				}
				fmt.Printf("%d. %s\n", order, e.Key)
				order++
				if err := eff.ReportCompletion(e); err != nil {
					return fmt.Errorf("taskgraphctl: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&rootGroup, "group", "", "group to plan (defaults to the first group in the document)")

	return cmd
}
