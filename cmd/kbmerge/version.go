package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// buildVersion is overridden at link time via -ldflags "-X main.buildVersion=...".
var buildVersion = "v0.0.0-dev"

var minVersion string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kbmerge version",
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().StringVar(&minVersion, "min", "", "fail unless the build version is at least this semver")
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Println(buildVersion)

	if minVersion == "" {
		return nil
	}
	if !semver.IsValid(minVersion) {
		return fmt.Errorf("version: %q is not a valid semver", minVersion)
	}
	if semver.Compare(buildVersion, minVersion) < 0 {
		return fmt.Errorf("version: build %s is older than required minimum %s", buildVersion, minVersion)
	}
	return nil
}
