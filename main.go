package main

import "github.com/trueth-protocol/bridge/cmd"

func main() {
	cmd.Execute()
}
