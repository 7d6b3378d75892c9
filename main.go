package main

import "github.com/cppla/socialfeed/cmd"

func main() {
	cmd.Execute()
}
