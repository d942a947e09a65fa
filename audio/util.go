package audio

// DownmixStereoToMono averages an interleaved stereo buffer into a new mono
// buffer. A trailing unpaired sample is ignored.
func DownmixStereoToMono(stereo []float32) []float32 {
	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) * 0.5
	}
	return mono
}
