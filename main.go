package main

import "github.com/notargets/femassemble/cmd"

func main() {
	cmd.Execute()
}
