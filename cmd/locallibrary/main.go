package main

import "github.com/conduit-lang/locallibrary/internal/cli/commands"

func main() {
	commands.Main()
}
