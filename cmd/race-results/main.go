// Command race-results looks up runner finish times on race timing platforms.
package main

import "github.com/pfrederiksen/race-results/internal/cli"

func main() {
	cli.Execute()
}
