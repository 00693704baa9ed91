package safeencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
	"github.com/xaionaro-go/coencoder/pkg/coprocess"
	"github.com/xaionaro-go/coencoder/pkg/diagdrain"
)

const maxCapabilitiesSize = 1 << 20

// Capabilities is what the co-process reports in the list mode.
type Capabilities struct {
	SampleRates []uint32 `json:"samplerates" yaml:"samplerates"`
	Bitrates    []uint32 `json:"bitrates" yaml:"bitrates"` // bps
}

// QueryCapabilities runs the co-process in the list mode. The tentative
// settings, if given, narrow the listing down to what is possible for
// them. A co-process that exits with a non-zero status is reported as
// ErrSubprocessUnavailable.
func QueryCapabilities(
	ctx context.Context,
	cfg ProcessConfig,
	settings *codecproto.Settings,
) (_ret *Capabilities, _err error) {
	logger.Debugf(ctx, "QueryCapabilities")
	defer func() { logger.Debugf(ctx, "/QueryCapabilities: %v", _err) }()

	cfg.Argument = codecproto.ListArgument
	proc, err := coprocess.Spawn(ctx, cfg)
	if err != nil {
		if errors.Is(err, coprocess.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrSubprocessUnavailable, err)
		}
		return nil, &SetupError{Err: err}
	}
	drain := diagdrain.Start(ctx, proc.DiagnosticReader(), logger.FromCtx(ctx), "capabilities")

	var result *multierror.Error
	if settings != nil {
		b, _ := settings.MarshalBinary()
		if _, err := proc.RequestWriter().Write(b); err != nil {
			logger.Debugf(ctx, "the co-process does not accept the tentative settings: %v", err)
		}
	}
	if err := proc.CloseInput(); err != nil {
		result = multierror.Append(result, err)
	}

	output, readErr := io.ReadAll(io.LimitReader(proc.DataReader(), maxCapabilitiesSize))

	if err := proc.CloseRequest(); err != nil {
		result = multierror.Append(result, err)
	}
	exitState, err := proc.Reap(ctx)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if err := drain.Wait(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := proc.CloseDiagnostic(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("unable to release the co-process: %w", err)
	}

	if exitState != nil && !exitState.Success() {
		return nil, fmt.Errorf("%w: the co-process exited with: %v", ErrSubprocessUnavailable, exitState)
	}
	if readErr != nil {
		return nil, fmt.Errorf("unable to read the capabilities: %w", readErr)
	}
	return ParseCapabilities(output)
}

// ParseCapabilities parses the listing of the form
//
//	"samplerates": [44100, 48000],
//	"bitrates": [64000, 128000]
func ParseCapabilities(listing []byte) (*Capabilities, error) {
	listing = bytes.TrimSpace(listing)
	if len(listing) == 0 {
		return nil, fmt.Errorf("the capability listing is empty")
	}
	doc := make([]byte, 0, len(listing)+2)
	doc = append(doc, '{')
	doc = append(doc, listing...)
	doc = append(doc, '}')

	var caps Capabilities
	if err := json.Unmarshal(doc, &caps); err != nil {
		return nil, fmt.Errorf("unable to parse the capability listing %q: %w", listing, err)
	}
	return &caps, nil
}
