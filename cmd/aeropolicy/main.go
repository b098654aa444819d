// Package main hosts the aeropolicy CLI entrypoint.
package main

import "github.com/camilorv/aeropolicy/cmd"

func main() {
	cmd.Execute()
}
