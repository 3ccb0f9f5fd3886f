// Command outcall sends one JSON-RPC call to the providers of a config file
// and prints every provider's outcome and the agreed result.
package main

import (
	"log"
	"os"
)

func main() {
	if err := Run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}
