package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/coencoder/pkg/safeencoder"
)

type capabilitiesReport struct {
	Capabilities *safeencoder.Capabilities
	Defaults     safeencoder.Defaults
}

func capabilities(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	cfg := readConfig(cmd)

	processCfg, err := cfg.Process.Coprocess()
	assertNoError(cmd, err)

	caps, err := safeencoder.QueryCapabilities(ctx, processCfg, tentativeSettings(cfg))
	assertNoError(cmd, err)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", " ")
	err = enc.Encode(capabilitiesReport{
		Capabilities: caps,
		Defaults:     safeencoder.NewDefaults(caps),
	})
	assertNoError(cmd, err)
}
