package main

import "github.com/radiofrance/imgtag/cmd"

func main() {
	cmd.Execute()
}
