package coprocess

import (
	"sort"
	"strings"
)

const (
	EnvWineDebug = "WINEDEBUG"
	EnvWinePath  = "WINEPATH"
)

// DefaultEnv is injected into every child after Config.Env, with the same
// set-if-absent semantics.
var DefaultEnv = map[string]string{
	EnvWineDebug: "fixme-all",
}

// mergeEnvIfAbsent returns base extended with every entry of the overlays
// whose key is not yet present. Earlier overlays win over later ones, and
// base wins over all of them.
func mergeEnvIfAbsent(base []string, overlays ...map[string]string) []string {
	result := append([]string(nil), base...)
	present := make(map[string]struct{}, len(base))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		present[key] = struct{}{}
	}
	for _, overlay := range overlays {
		keys := make([]string, 0, len(overlay))
		for key := range overlay {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := present[key]; ok {
				continue
			}
			present[key] = struct{}{}
			result = append(result, key+"="+overlay[key])
		}
	}
	return result
}
