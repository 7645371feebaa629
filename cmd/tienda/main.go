// Command tienda runs the clothing storefront and its maintenance tasks.
package main

import (
	"os"

	"github.com/tienda-labs/tienda/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
