// Command netstorage is a CLI driver over the github.com/akamai/netstorage-go
// library: it parses flags and environment variables, builds a ClientConfig,
// and dispatches to the library's operations. See the package doc comment in
// app.go for the scope this binary deliberately leaves out.
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	svc := NewApp()

	app := kingpin.New("netstorage", "Akamai NetStorage client")
	app.HelpFlag.Short('h')

	svc.setup(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
