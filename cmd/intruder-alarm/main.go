package main

import "github.com/oshokin/intruder-alarm/cmd/intruder-alarm/cmd"

func main() {
	cmd.Execute()
}
