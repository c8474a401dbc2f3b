package main

import "github.com/jmehdipour/utility-billing/cmd"

func main() {
	cmd.Execute()
}
