package main

import "github.com/malt3/peicon/cmd"

func main() {
	cmd.Execute()
}
