// Package audio handles capture buffering and payload codecs.
// It implements ordered chunk accumulation for one recording session,
// in-memory WAV encoding of PCM-16 audio for upload, and the strict
// hex byte codec used by the assistant response format.
package audio
