package safeencoder

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/coencoder/pkg/codecproto"
	"github.com/xaionaro-go/coencoder/pkg/stubcodec"
)

func TestQueryCapabilities(t *testing.T) {
	ctx := testContext(t)
	cfg := stubProcess(map[string]string{
		stubcodec.EnvSampleRates: "44100,48000",
		stubcodec.EnvBitrates:    "64000,96000,127000,160000",
	})

	for name, settings := range map[string]*codecproto.Settings{
		"without_settings": nil,
		"with_settings": func() *codecproto.Settings {
			s := codecproto.NewSettings()
			s.Channels = 2
			s.SampleRateIn = 48000
			s.Flags = codecproto.FlagAllowHEAAC
			return &s
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			caps, err := QueryCapabilities(ctx, cfg, settings)
			require.NoError(t, err)
			require.Equal(t, []uint32{44100, 48000}, caps.SampleRates)
			require.Equal(t, []uint32{64000, 96000, 127000, 160000}, caps.Bitrates)

			defaults := NewDefaults(caps)
			require.Equal(t, Defaults{SampleRate: 0, BitrateKbps: 127, AllowHEAAC: true}, defaults)
		})
	}
}

func TestQueryCapabilitiesUnavailable(t *testing.T) {
	ctx := testContext(t)

	_, err := QueryCapabilities(ctx, stubProcess(map[string]string{
		stubcodec.EnvUnavailable: "1",
	}), nil)
	require.ErrorIs(t, err, ErrSubprocessUnavailable)

	_, err = QueryCapabilities(ctx, ProcessConfig{ExecutablePath: "/nonexistent/encoder.exe"}, nil)
	require.ErrorIs(t, err, ErrSubprocessUnavailable)
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]byte("\"samplerates\": [8000, 48000],\n\"bitrates\": [32000]\n"))
	require.NoError(t, err)
	require.Equal(t, &Capabilities{SampleRates: []uint32{8000, 48000}, Bitrates: []uint32{32000}}, caps)

	caps, err = ParseCapabilities([]byte("\"samplerates\": [],\n\"bitrates\": []\n"))
	require.NoError(t, err)
	require.Empty(t, caps.SampleRates)

	_, err = ParseCapabilities(nil)
	require.Error(t, err)
	_, err = ParseCapabilities([]byte("\"samplerates\": [8000"))
	require.Error(t, err)
}

func TestBestBitrateMatch(t *testing.T) {
	kbps, found := BestBitrateMatch(128, []uint32{96000, 120000, 140000, 256000})
	require.True(t, found)
	require.Equal(t, uint32(120), kbps)

	kbps, found = BestBitrateMatch(128, []uint32{128000})
	require.True(t, found)
	require.Equal(t, uint32(128), kbps)

	kbps, found = BestBitrateMatch(128, nil)
	require.False(t, found)
	require.Equal(t, uint32(128), kbps)

	require.Equal(t, Defaults{BitrateKbps: DefaultBitrateKbps, AllowHEAAC: true}, NewDefaults(nil))
}
