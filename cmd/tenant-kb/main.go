// Package main is the entry point for the tenant knowledge base service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/tenant-kb/cmd/tenant-kb/app"
)

func main() {
	app.NewApp().Run()
}
