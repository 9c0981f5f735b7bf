package main

import "github.com/marcus/triage/cmd/triage/commands"

func main() {
	commands.Execute()
}
