// Command ossim simulates an operating system that schedules processes and
// manages their virtual memory.
package main

import (
	"github.com/sarchlab/ossim/ossim/cmd"
	"github.com/tebeka/atexit"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
