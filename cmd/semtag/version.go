package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/version"
)

type versionInfo struct {
	Release string `json:"release"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(versionInfo{
			Release: version.GitRelease,
			Commit:  version.GitCommit,
			Date:    version.GitCommitDate,
			Go:      version.GoInfo,
		})
	},
}
