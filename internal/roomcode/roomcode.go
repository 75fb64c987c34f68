package roomcode

import (
	"crypto/rand"
)

// Alphabet excludes 0, 1, I and O: those read ambiguously when a code is
// handwritten or typed off a phone screen.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a room code.
const CodeLength = 8

// Generate returns a new random room code. Uniqueness against live rooms is
// the caller's responsibility.
func Generate() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("roomcode: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf)
}
