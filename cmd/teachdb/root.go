// Command teachdb is a small operator CLI over the B+-tree index core: it
// creates, inserts into, looks up, scans, removes from, and structurally
// checks a named index stored in a single page file (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teachdb/internal/buffer"
	"teachdb/internal/catalog"
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
)

var (
	dataFile    string
	catalogFile string
	pageSize    int
	poolSize    int
	keyTypeFlag string
)

var rootCmd = &cobra.Command{
	Use:   "teachdb",
	Short: "Operate a teachdb B+-tree index file",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataFile, "file", "teachdb.db", "path to the index page file")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "teachdb.catalog.json", "path to the name registry sidecar")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 4096, "page size in bytes; every command opens the data file with it")
	rootCmd.PersistentFlags().IntVar(&poolSize, "pool-size", 64, "buffer pool frame count")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openManagers wires up the disk manager, buffer pool, and catalog
// against the real filesystem.
func openManagers(log *zap.SugaredLogger) (*buffer.Manager, *catalog.Catalog, error) {
	fs := afero.NewOsFs()
	dm, err := disk.Open(fs, dataFile, pageSize, disk.WithLogger(log))
	if err != nil {
		return nil, nil, fmt.Errorf("open data file: %w", err)
	}
	bpm := buffer.NewManager(dm, poolSize, buffer.WithLogger(log))
	cat, err := catalog.Open(fs, catalogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	return bpm, cat, nil
}

// parseKeyType interprets --key-type as "int64" or "string:N".
func parseKeyType(spec string) (keytype.KeyType, error) {
	if spec == "int64" {
		return keytype.Int64Key{}, nil
	}
	var n int
	if _, err := fmt.Sscanf(spec, "string:%d", &n); err == nil && n > 0 {
		return keytype.FixedStringKey{N: n}, nil
	}
	return nil, fmt.Errorf("unrecognized --key-type %q (want \"int64\" or \"string:N\")", spec)
}

// parseKey converts a CLI string argument into a key value matching kt.
func parseKey(kt keytype.KeyType, s string) (keytype.Key, error) {
	switch kt.(type) {
	case keytype.Int64Key:
		var v int64
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			return nil, fmt.Errorf("invalid int64 key %q: %w", s, err)
		}
		return v, nil
	case keytype.FixedStringKey:
		b := make([]byte, kt.Width())
		copy(b, s)
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", kt)
	}
}

// newAnonymousName returns a generated name for indexes created without
// one, so scratch indexes never collide in the catalog.
func newAnonymousName() string {
	return "idx-" + uuid.NewString()
}

func newLogger() *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}
