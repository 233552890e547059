// Package ambient procedurally generates the hold-music loop served while
// a caller waits. The waveform is synthesized from scratch on first use,
// memoized for the life of the process, and shaped so that back-to-back
// playback has no audible seam.
package ambient

import (
	"encoding/binary"
	"math"
	"sync"
)

// Output format: 10 seconds of mono 16-bit PCM at 44.1kHz in a WAV
// container. The four chords split the duration evenly.
const (
	SampleRate   = 44100
	DurationSec  = 10.0
	numChords    = 4
	chordSeconds = DurationSec / numChords

	chordFadeIn  = 0.10 // fraction of the chord slot
	chordFadeOut = 0.15
	globalFade   = 0.05 // fraction of total duration at each end

	detuneRatio = 1.001
	tremoloHz   = 0.3
	outputGain  = 0.12

	headerSize = 44
)

// chords is a slow I–vi–IV–V progression; each chord is a root triad.
var chords = [numChords][3]float64{
	{261.63, 329.63, 392.00}, // C4 E4 G4
	{220.00, 261.63, 329.63}, // A3 C4 E4
	{174.61, 220.00, 261.63}, // F3 A3 C4
	{196.00, 246.94, 293.66}, // G3 B3 D4
}

var (
	once sync.Once
	loop []byte
)

// Loop returns the memoized ambient waveform. The first call synthesizes
// the buffer; every later call returns the identical bytes.
func Loop() []byte {
	once.Do(func() {
		loop = synthesize()
	})
	return loop
}

func synthesize() []byte {
	numSamples := int(DurationSec * SampleRate)
	out := make([]byte, headerSize+numSamples*2)
	writeWAVHeader(out, numSamples)

	for i := 0; i < numSamples; i++ {
		t := float64(i) / SampleRate

		chordIdx := int(t / chordSeconds)
		if chordIdx >= numChords {
			chordIdx = numChords - 1
		}
		pos := (t - float64(chordIdx)*chordSeconds) / chordSeconds

		v := 0.0
		for _, freq := range chords[chordIdx] {
			v += math.Sin(2 * math.Pi * freq * t)
			v += 0.5 * math.Sin(2*math.Pi*freq*detuneRatio*t)
			v += 0.25 * math.Sin(2*math.Pi*freq*2*t)
		}

		v *= chordEnvelope(pos)
		v *= globalEnvelope(t)
		v *= 0.85 + 0.15*math.Sin(2*math.Pi*tremoloHz*t)
		v *= outputGain

		sample := v * 32767
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		binary.LittleEndian.PutUint16(out[headerSize+i*2:], uint16(int16(sample)))
	}

	return out
}

// chordEnvelope crossfades adjacent chords: linear fade-in over the first
// 10% of the slot and fade-out over the last 15%.
func chordEnvelope(pos float64) float64 {
	switch {
	case pos < chordFadeIn:
		return pos / chordFadeIn
	case pos > 1-chordFadeOut:
		return (1 - pos) / chordFadeOut
	default:
		return 1
	}
}

// globalEnvelope fades the whole buffer in and out so the loop's first
// and last samples sit at zero amplitude.
func globalEnvelope(t float64) float64 {
	edge := globalFade * DurationSec
	switch {
	case t < edge:
		return t / edge
	case t > DurationSec-edge:
		return (DurationSec - t) / edge
	default:
		return 1
	}
}

// writeWAVHeader fills the fixed 44-byte RIFF/WAVE header for mono
// 16-bit PCM.
func writeWAVHeader(buf []byte, numSamples int) {
	dataSize := numSamples * 2
	byteRate := SampleRate * 2

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataSize))
}
