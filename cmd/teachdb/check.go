package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teachdb/internal/bptree"
)

var checkCmd = &cobra.Command{
	Use:   "check NAME",
	Short: "Verify the structural invariants of a named index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		log := newLogger()
		bpm, cat, err := openManagers(log)
		if err != nil {
			return err
		}
		idx, err := bptree.Open(bpm, cat, name, bptree.WithLogger(log))
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.CheckInvariants(); err != nil {
			return fmt.Errorf("invariant violations:\n%w", err)
		}
		fmt.Printf("%s: ok (%d entries)\n", name, idx.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
