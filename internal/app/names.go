package app

import "math/rand"

const (
	nameLetters = "abcdefghijklmnopqrstuvwxyz"
	nameDigits  = "0123456789"
)

// randomPlayerName builds a guest name of 5 distinct letters followed by 3
// distinct digits. Collisions with the session roster are handled by the
// caller retrying.
func randomPlayerName() string {
	out := make([]byte, 0, 8)
	for _, i := range rand.Perm(len(nameLetters))[:5] {
		out = append(out, nameLetters[i])
	}
	for _, i := range rand.Perm(len(nameDigits))[:3] {
		out = append(out, nameDigits[i])
	}
	return string(out)
}
