package safeencoder

const DefaultBitrateKbps = 128

// Defaults are the initial values of the user-facing encoder settings.
type Defaults struct {
	SampleRate  uint32 `yaml:"sample_rate"` // 0 matches the input
	BitrateKbps uint32 `yaml:"bitrate_kbps"`
	AllowHEAAC  bool   `yaml:"allow_he_aac"`
}

// NewDefaults computes the defaults once from the reported capabilities;
// caps may be nil if they could not be queried.
func NewDefaults(caps *Capabilities) Defaults {
	var bitrates []uint32
	if caps != nil {
		bitrates = caps.Bitrates
	}
	bitrateKbps, _ := BestBitrateMatch(DefaultBitrateKbps, bitrates)
	return Defaults{
		SampleRate:  0,
		BitrateKbps: bitrateKbps,
		AllowHEAAC:  true,
	}
}

// BestBitrateMatch returns the candidate (in bps) closest to the
// requested bitrate (in kbps), converted to kbps. If there are no
// candidates, the requested bitrate is returned and found is false.
func BestBitrateMatch(kbps uint32, candidates []uint32) (_ uint32, found bool) {
	want := int64(kbps) * 1000
	var (
		best     int64
		bestDist int64
	)
	for _, candidate := range candidates {
		dist := abs(want - int64(candidate))
		if !found || dist < bestDist {
			best, bestDist, found = int64(candidate), dist, true
		}
	}
	if !found {
		return kbps, false
	}
	return uint32(best / 1000), true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
