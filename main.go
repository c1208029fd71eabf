package main

import (
	"github.com/sidkik/ftpmirror/cmd"
	"github.com/sidkik/ftpmirror/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
