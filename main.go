package main

import "trs80term/cmd"

func main() {
	cmd.Execute()
}
