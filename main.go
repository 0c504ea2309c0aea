package main

import "github.com/kozaktomas/face-check/cmd"

func main() {
	cmd.Execute()
}
