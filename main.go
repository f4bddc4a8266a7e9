package main

import "github.com/yass-dev/gateprobe/cmd"

func main() {
	cmd.Execute()
}
