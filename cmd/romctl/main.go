package main

import "github.com/blackwell-systems/romctl/internal/app"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	app.SetVersion(version)
	app.Execute()
}
