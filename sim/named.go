package sim

import (
	"log"
	"strings"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// NameMustBeValid panics if the name is empty or contains whitespace.
// Names are used as keys by the monitor and as locations in traces.
func NameMustBeValid(name string) {
	if name == "" {
		log.Panic("name must not be empty")
	}

	if strings.ContainsAny(name, " \t\n") {
		log.Panicf("name %q must not contain whitespace", name)
	}
}
