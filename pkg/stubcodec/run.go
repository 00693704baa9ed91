package stubcodec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
)

const ExitCodeFailure = 1

// Run is the whole co-process: it serves one session over in/out, or
// prints the capability listing when called with codecproto.ListArgument.
// It returns the exit status.
func Run(
	ctx context.Context,
	args []string,
	in io.Reader,
	out io.Writer,
) int {
	cfg, err := ConfigFromEnv()
	if err != nil {
		logger.Errorf(ctx, "invalid configuration: %v", err)
		return ExitCodeFailure
	}
	if cfg.Unavailable {
		logger.Errorf(ctx, "the encoder is not installed")
		return codecproto.ExitCodeUnavailable
	}

	if len(args) > 0 && args[0] == codecproto.ListArgument {
		if err := printCapabilities(ctx, cfg, in, out); err != nil {
			logger.Errorf(ctx, "unable to print the capabilities: %v", err)
			return ExitCodeFailure
		}
		return 0
	}
	if len(args) > 0 {
		logger.Errorf(ctx, "unexpected arguments: %q", args)
		return ExitCodeFailure
	}

	err = codecproto.Serve(ctx, in, out, func(ctx context.Context, settings codecproto.Settings) (codecproto.Codec, error) {
		return New(ctx, cfg, settings)
	})
	if err != nil {
		logger.Errorf(ctx, "%v", err)
		return ExitCodeFailure
	}
	return 0
}

func printCapabilities(
	ctx context.Context,
	cfg Config,
	in io.Reader,
	out io.Writer,
) error {
	b := make([]byte, codecproto.SettingsSize)
	_, err := io.ReadFull(in, b)
	switch {
	case err == nil:
		var settings codecproto.Settings
		_ = settings.UnmarshalBinary(b)
		logger.Debugf(ctx, "tentative settings: %#+v", settings)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		logger.Debugf(ctx, "no tentative settings")
	default:
		return fmt.Errorf("unable to read the tentative settings: %w", err)
	}

	_, err = fmt.Fprintf(out, "\"samplerates\": [%s],\n\"bitrates\": [%s]\n", joinUints(cfg.SampleRates), joinUints(cfg.Bitrates))
	return err
}

func joinUints(values []uint32) string {
	words := make([]string, 0, len(values))
	for _, v := range values {
		words = append(words, strconv.FormatUint(uint64(v), 10))
	}
	return strings.Join(words, ", ")
}
