package main

import "bcstcp/cmd"

func main() {
	cmd.Execute()
}
