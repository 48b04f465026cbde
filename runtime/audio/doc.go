// Package audio provides the signal processing used during an interview:
// voice activity detection over microphone PCM, the "no voice" signal the
// session uses as an utterance boundary, and PCM mixing for recordings.
//
// # Voice activity
//
// SimpleVAD scores 16-bit little-endian PCM chunks by RMS energy after a
// noise gate and runs a four-state machine (quiet, starting, speaking,
// stopping). ActivityMonitor feeds chunks through a VADAnalyzer, passes its
// state changes to a SilenceDetector and emits true on NoVoice when the
// detector sees an utterance end (speech stopped for VADParams.StopSecs),
// and false when speech starts again.
//
// Detection is heuristic. A long pause mid-sentence longer than StopSecs
// splits an answer in two; constant background noise above the noise gate
// keeps the monitor from ever reporting silence. Raise StopSecs to tolerate
// pauses and raise MinVolume in noisy rooms.
//
// # Mixing
//
// Mixer sums two PCM16 sources sample by sample into one track, clamping to
// the int16 range, and WrapPCMInWAV makes the result playable.
package audio
