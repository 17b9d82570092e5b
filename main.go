package main

import (
	"github.com/AdeilsonR/puppeteer-themis/cmd"
)

// main is the entry point for the themis binary.
func main() {
	cmd.Execute()
}
