// Command rootcas drives the content-addressed rootfs object store from
// the command line.
package main

import "github.com/javanhut/rootcas/cli"

func main() {
	cli.Execute()
}
