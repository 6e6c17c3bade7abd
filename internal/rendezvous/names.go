package rendezvous

import "math/rand/v2"

var (
	adjectives = []string{"Happy", "Quiet", "Fast", "Brave", "Clever", "Cool", "Mighty"}
	animals    = []string{"Panda", "Fox", "Eagle", "Lion", "Tiger", "Dolphin", "Wolf"}
)

// RandomName returns a display name like "Brave Fox".
func RandomName() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + animals[rand.IntN(len(animals))]
}
