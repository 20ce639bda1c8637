package osc

// Features is the full per-block analysis output. pkg/audio fills one of
// these per block and hands it to Publish, which fans it out across every
// legacy address in the compatibility table.
type Features struct {
	// Levels: sub-bass, bass, low-mid, mid, high-mid, presence, air, overall.
	Levels [8]float32

	// Spectrum is the 32-bin linear magnitude spectrum for UI display.
	Spectrum [32]float32

	BeatFlag   bool
	BeatEnergy float32
	BassBeat   float32
	MidBeat    float32
	HighBeat   float32

	BPM           float32
	BPMConfidence float32

	PitchHz         float32
	PitchConfidence float32

	SpectralCentroid float32
	RolloffHz        float32
	Flux             float32

	Buildup    bool
	Drop       bool
	Trend      float32
	Brightness float32

	Noisiness         float32
	DynamicComplexity float32
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// Publish fans Features out across the full legacy bridge: the seven
// §6 bundle addresses plus every single-value address. One bundle datagram
// carries the /audio/* group; the singles go out as individual messages
// since older consumers subscribe to them address-by-address.
func Publish(c *Client, f Features) {
	c.SendBundle(
		Message{Address: "/audio/levels", Args: f.Levels[:]},
		Message{Address: "/audio/spectrum", Args: f.Spectrum[:]},
		Message{Address: "/audio/beats", Args: []float32{
			boolToFloat(f.BeatFlag), f.BeatEnergy, f.BassBeat, f.MidBeat, f.HighBeat,
		}},
		Message{Address: "/audio/bpm", Args: []float32{f.BPM, f.BPMConfidence}},
		Message{Address: "/audio/pitch", Args: []float32{f.PitchHz, f.PitchConfidence}},
		Message{Address: "/audio/spectral", Args: []float32{f.SpectralCentroid, f.RolloffHz, f.Flux}},
		Message{Address: "/audio/structure", Args: []float32{
			boolToFloat(f.Buildup), boolToFloat(f.Drop), f.Trend, f.Brightness,
		}},
	)

	c.Send("/beat", boolToFloat(f.BeatFlag))
	c.Send("/bpm", f.BPM)
	c.Send("/energy", f.Levels[7])
	c.Send("/brightness", f.Brightness)
	c.Send("/noisiness", f.Noisiness)
	c.Send("/bass_band", f.Levels[1])
	c.Send("/mid_band", f.Levels[3])
	c.Send("/high_band", f.Levels[5])
	c.Send("/beat_energy", f.BeatEnergy)
	c.Send("/beat_energy_low", f.BassBeat)
	c.Send("/beat_energy_high", f.HighBeat)
	c.Send("/dynamic_complexity", f.DynamicComplexity)
}
