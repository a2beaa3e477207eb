package main

import "ghmirror/internal/cmd"

func main() {
	cmd.Execute()
}
