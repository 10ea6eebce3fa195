package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workgraph/workgraph/internal/graph"
	"github.com/workgraph/workgraph/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Fold legacy loops_to records into after edges and cycle_config",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(graphPath)
			migrated := 0
			err := st.Lock(func(g *graph.WorkGraph) error {
				n, migrateErr := store.MigrateLoopsTo(g)
				migrated = n
				return migrateErr
			})
			if err != nil {
				return err
			}
			if migrated == 0 {
				fmt.Println(gray("nothing to migrate"))
				return nil
			}
			fmt.Println(green(fmt.Sprintf("migrated %d legacy loops_to record(s)", migrated)))
			return nil
		},
	}
}
