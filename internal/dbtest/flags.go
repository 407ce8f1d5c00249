package dbtest

import (
	"flag"
	"os"
	"os/signal"
)

// Inspect keeps the container of a failed test running until interrupted, so
// that its databases can be browsed. Ryuk still reaps it eventually.
var Inspect = flag.Bool("dbtest.inspect", false, "keep test container running for inspection after a failed test completes")

// waitForInspection blocks until SIGINT.
func waitForInspection() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	<-c
}
