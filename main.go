package main

import "github.com/mblarsen/clin/cmd"

func main() {
	cmd.Execute()
}
