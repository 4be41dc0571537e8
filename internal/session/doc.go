// Package session implements the recording session controller. A session
// is toggled between idle and recording; stopping a recording hands the
// buffered audio by value to a background pipeline that encodes it,
// uploads it to the assistant and plays the synthesized reply.
package session
