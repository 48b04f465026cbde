// Package recorder captures a single recording of an interview: the shared
// screen's video plus one audio track mixing system audio and microphone.
//
// Capture devices are reached through CaptureSource, so the recorder runs
// the same against a browser bridge or in-memory test streams. A recording
// starts only after the display stream passes validation, and Stop yields
// exactly one Artifact.
package recorder
