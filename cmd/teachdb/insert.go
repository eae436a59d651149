package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teachdb/internal/bptree"
	"teachdb/internal/disk"
	"teachdb/internal/rid"
)

var insertCmd = &cobra.Command{
	Use:   "insert NAME KEY PAGE_ID:SLOT_ID",
	Short: "Insert or upsert one entry",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, keyArg, ridArg := args[0], args[1], args[2]
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
		var pageID, slotID uint32
		if _, err := fmt.Sscanf(ridArg, "%d:%d", &pageID, &slotID); err != nil {
			return fmt.Errorf("invalid rid %q, want PAGE_ID:SLOT_ID: %w", ridArg, err)
		}
		r := rid.RID{PageID: disk.PageID(pageID), SlotID: uint16(slotID)}
		if err := idx.Insert(key, r); err != nil {
			return err
		}
		fmt.Printf("inserted %s -> %d:%d (size now %d)\n", keyArg, pageID, slotID, idx.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insertCmd)
}
