package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"go.lepak.sg/taskgraph/internal/clilog"
	"go.lepak.sg/taskgraph/internal/workflow"
	"go.lepak.sg/taskgraph/taskgroup"
)

func newRunCommand(v *viper.Viper) *cobra.Command {
	var rootGroup string
	var maxInFlight int

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Invoke a task group from a workflow document and stream its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := clilog.New(clilog.Config{
				Level:  v.GetString("log.level"),
				Format: v.GetString("log.format"),
			})
			if err != nil {
				return err
			}
			defer log.Sync()

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

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				log.Info("received shutdown signal, canceling invocation")
				cancel()
			}()

			driver := &taskgroup.Driver{Logger: log, MaxInFlight: maxInFlight}
			inv, err := driver.Invoke(ctx, g)
			if err != nil {
				return fmt.Errorf("taskgraphctl: %w", err)
			}

			for e := range inv.Results {
				if e.Err != nil {
					log.Error("entry failed", zap.String("key", e.Key), zap.Error(e.Err))
					continue
				}
				fmt.Printf("%s -> %v\n", e.Key, e.Value)
			}

			return inv.Wait()
		},
	}

	cmd.Flags().StringVar(&rootGroup, "group", "", "group to invoke (defaults to the first group in the document)")
	cmd.Flags().IntVar(&maxInFlight, "max-in-flight", 0, "bound the number of entries dispatched concurrently (0 = unbounded)")

	return cmd
}
