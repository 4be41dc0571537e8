// Package responder implements the assistant pipeline behind the
// development server: transcribe the uploaded audio, generate a reply
// and synthesize it in the requested voice.
package responder
