package main

import "github.com/kasuboski/animez/cmd"

func main() {
	cmd.Execute()
}
