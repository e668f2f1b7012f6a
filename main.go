package main

import "github.com/brensch/midiset/cmd"

func main() {
	cmd.Execute()
}
