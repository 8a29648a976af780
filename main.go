package main

import "songforge/cmd"

func main() {
	cmd.Execute()
}
