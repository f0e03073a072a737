package main

import "github.com/appsworld/go-tbd/cmd/tbd/cmd"

func main() {
	cmd.Execute()
}
