package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teachdb/internal/bptree"
	"teachdb/internal/keytype"
)

var scanFrom string

var scanCmd = &cobra.Command{
	Use:   "scan NAME",
	Short: "Scan every entry in ascending key order, optionally from a starting key",
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

		var it *bptree.Iterator
		if scanFrom != "" {
			key, err := parseKey(idx.KeyType(), scanFrom)
			if err != nil {
				return err
			}
			it, err = idx.ScanFrom(key)
			if err != nil {
				return err
			}
		} else {
			it, err = idx.Scan()
			if err != nil {
				return err
			}
		}
		defer it.Close()

		for {
			ok, err := it.HasNext()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			k, r, err := it.Next()
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %d:%d\n", formatKey(idx.KeyType(), k), r.PageID, r.SlotID)
		}
		return nil
	},
}

func formatKey(kt keytype.KeyType, k keytype.Key) string {
	switch kt.(type) {
	case keytype.Int64Key:
		return fmt.Sprintf("%d", k.(int64))
	case keytype.FixedStringKey:
		return string(k.([]byte))
	default:
		return fmt.Sprintf("%v", k)
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanFrom, "from", "", "only scan entries with key >= this value")
	rootCmd.AddCommand(scanCmd)
}
