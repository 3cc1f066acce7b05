// Package main is the entry point for the statsync application
package main

import (
	"github.com/byteberry/statsync/cmd"
)

func main() {
	cmd.Execute()
}
