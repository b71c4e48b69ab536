package main

import (
	"echoframe/cmd/cmd"
)

func main() {
	cmd.Execute()
}
