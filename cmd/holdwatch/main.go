// Command holdwatch tracks a family's library books from recommendation
// through hold, arrival and pickup.
package main

import "github.com/mesh-intelligence/holdwatch/internal/cli"

func main() {
	cli.Execute()
}
