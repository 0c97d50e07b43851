package main

import (
	"fmt"
	"os"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <database>",
	Short: "Describe a serialized database",
	Long: `Print the engine version, mode and sizes of a serialized database file.

The mode shown is the base mode (block, stream or vectored); the serialized
form does not record the start-of-match horizon.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	sdb := hs.NewSerializedDatabase(data)
	defer sdb.Close()

	info, err := sdb.Info()
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	deserialized, err := sdb.DeserializedSize()
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	db, err := sdb.Deserialize()
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", args[0])
	fmt.Fprintf(out, "Info: %s\n", info)
	fmt.Fprintf(out, "Mode: %s\n", db.Mode())
	fmt.Fprintf(out, "Serialized size: %d bytes\n", sdb.Len())
	fmt.Fprintf(out, "Deserialized size: %d bytes\n", deserialized)
	if db.Mode().Base() == hs.ModeStream {
		streamSize, err := db.StreamSize()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Stream state size: %d bytes\n", streamSize)
	}
	fmt.Fprintf(out, "Runtime engine: %s\n", hs.Version())
	return nil
}
