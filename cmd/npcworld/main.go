// Command npcworld is the operator entry point for the NPC cognitive
// runtime: it loads a world config, opens the persistent store, wires
// every component (A-H), and exposes serve/tick/migrate/seed-persona
// subcommands. Grounded on the teacher's cmd/giztoy/main.go (a thin
// main delegating entirely to a commands package built around cobra).
package main

import (
	"fmt"
	"os"

	"github.com/fracturedsurvival/npcruntime/cmd/npcworld/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
