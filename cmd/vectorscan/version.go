package main

import (
	"fmt"
	"runtime"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version of vectorscan and the engine it is linked against",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "vectorscan v%s\n", version)
	fmt.Fprintf(out, "Commit: %s\n", commit)
	fmt.Fprintf(out, "Engine: %s\n", hs.Version())
	if err := hs.ValidPlatform(); err != nil {
		fmt.Fprintf(out, "Platform: unsupported (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Platform: supported\n")
	}
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}
