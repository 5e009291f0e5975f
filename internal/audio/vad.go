package audio

import (
	"encoding/binary"
	"math"
)

// Detector flags speech vs. silence per frame using normalized RMS energy.
// A single loud frame is not speech: the detector requires debounceFrames
// consecutive frames over the threshold before reporting speech, which
// filters one-frame noise spikes (line clicks, breath pops).
type Detector struct {
	threshold      float64
	debounceFrames int

	speechRun  int
	silenceRun int
	speaking   bool
}

// NewDetector creates a detector. threshold is on normalized RMS (0..1);
// values around 0.02 work for 8kHz telephony audio but are deployment-tuned.
func NewDetector(threshold float64, debounceFrames int) *Detector {
	if threshold <= 0 {
		threshold = 0.02
	}
	if debounceFrames <= 0 {
		debounceFrames = 3
	}
	return &Detector{threshold: threshold, debounceFrames: debounceFrames}
}

// Classify reports whether a single PCM16 frame is above the energy
// threshold, with no debouncing.
func (d *Detector) Classify(frame []byte) bool {
	return RMS(frame) >= d.threshold
}

// Process feeds one frame and returns the debounced speaking state.
func (d *Detector) Process(frame []byte) bool {
	if d.Classify(frame) {
		d.speechRun++
		d.silenceRun = 0
	} else {
		d.silenceRun++
		d.speechRun = 0
	}

	if !d.speaking && d.speechRun >= d.debounceFrames {
		d.speaking = true
	}
	if d.speaking && d.silenceRun >= d.debounceFrames {
		d.speaking = false
	}
	return d.speaking
}

// Speaking returns the current debounced state without feeding a frame.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Reset clears the debounce state, e.g. when a new turn starts.
func (d *Detector) Reset() {
	d.speechRun = 0
	d.silenceRun = 0
	d.speaking = false
}

// RMS computes root-mean-square energy of little-endian PCM16 samples,
// normalized to 0..1 against the 16-bit full scale.
func RMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(frame[i*2:]))
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
