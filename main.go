package main

import "github.com/openneurolab/neurostream/cmd"

func main() {
	cmd.Execute()
}
