package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teachdb/internal/bptree"
)

var createKeyType string

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new, empty named index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if name == "" {
			name = newAnonymousName()
		}
		kt, err := parseKeyType(createKeyType)
		if err != nil {
			return err
		}
		log := newLogger()
		bpm, cat, err := openManagers(log)
		if err != nil {
			return err
		}
		idx, err := bptree.Create(bpm, cat, name, kt, bptree.WithLogger(log))
		if err != nil {
			return err
		}
		defer idx.Close()
		fmt.Printf("created %q (key type %s)\n", name, createKeyType)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createKeyType, "key-type", "int64", `key type: "int64" or "string:N"`)
	rootCmd.AddCommand(createCmd)
}
