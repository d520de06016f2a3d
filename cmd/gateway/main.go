// Command gateway runs the WebDAV protocol gateway.
package main

import (
	"fmt"
	"os"

	"github.com/javi11/davgateway/cmd/gateway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
