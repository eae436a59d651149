package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"teachdb/internal/bptree"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup NAME KEY",
	Short: "Look up one key",
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
		r, err := idx.Lookup(key)
		if errors.Is(err, bptree.ErrNotFound) {
			fmt.Printf("%s: not found\n", keyArg)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %d:%d\n", keyArg, r.PageID, r.SlotID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
