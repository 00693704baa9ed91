package coprocess

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeEnvIfAbsent(t *testing.T) {
	base := []string{"PATH=/bin", "WINEDEBUG=+all"}
	result := mergeEnvIfAbsent(base,
		map[string]string{"WINEPATH": "/opt/lib", "PATH": "/nope"},
		map[string]string{"WINEDEBUG": "fixme-all", "WINEPATH": "/other", "EXTRA": "1"},
	)
	require.Equal(t, []string{
		"PATH=/bin",
		"WINEDEBUG=+all",
		"WINEPATH=/opt/lib",
		"EXTRA=1",
	}, result)

	// base must not be modified
	require.Equal(t, []string{"PATH=/bin", "WINEDEBUG=+all"}, base)
}
