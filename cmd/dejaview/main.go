package main

import "github.com/felixgeelhaar/dejaview/cmd/dejaview/cli"

func main() {
	cli.Execute()
}
