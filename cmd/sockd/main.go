// Command sockd is a dual-stack echo daemon built on the sockio reactor.
package main

import "os"

func main() {
	os.Exit(run(ParseFlags(os.Args[1:])))
}
