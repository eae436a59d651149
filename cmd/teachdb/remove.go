package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teachdb/internal/bptree"
	"teachdb/internal/rid"
)

var removeCmd = &cobra.Command{
	Use:   "remove NAME KEY",
	Short: "Remove the entry for KEY, if present",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, keyArg := args[0], args[1]
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

		key, err := parseKey(idx.KeyType(), keyArg)
		if err != nil {
			return err
		}
		removed, err := idx.Remove(key, rid.RID{})
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("%s: not found\n", keyArg)
			return nil
		}
		fmt.Printf("removed %s (size now %d)\n", keyArg, idx.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
