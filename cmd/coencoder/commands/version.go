package commands

import (
	"encoding/json"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/coencoder/pkg/buildvars"
)

type buildVars struct {
	Version   string `json:",omitempty"`
	GitCommit string `json:",omitempty"`
	BuildDate string `json:",omitempty"`
}

type buildInfo struct {
	BuildInfo *debug.BuildInfo `json:",omitempty"`
	BuildVars *buildVars       `json:",omitempty"`
}

func getBuildInfo() buildInfo {
	result := buildInfo{
		BuildVars: &buildVars{
			Version:   buildvars.Version,
			GitCommit: buildvars.GitCommit,
		},
	}
	if buildvars.BuildDate != nil {
		result.BuildVars.BuildDate = buildvars.BuildDate.UTC().Format("2006-01-02T15:04:05Z")
	}
	if *result.BuildVars == (buildVars{}) {
		result.BuildVars = nil
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return result
	}

	result.BuildInfo = bi
	return result
}

func version(cmd *cobra.Command, args []string) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", " ")
	assertNoError(cmd, enc.Encode(getBuildInfo()))
}
