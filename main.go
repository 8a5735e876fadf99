package main

import (
	"fmt"

	_ "github.com/agentuity/go-plancache/config"
	_ "github.com/agentuity/go-plancache/env"
	_ "github.com/agentuity/go-plancache/eventing"
	_ "github.com/agentuity/go-plancache/logger"
	_ "github.com/agentuity/go-plancache/normalize"
	_ "github.com/agentuity/go-plancache/plan"
	_ "github.com/agentuity/go-plancache/plancache"
	_ "github.com/agentuity/go-plancache/planstore"
	_ "github.com/agentuity/go-plancache/resilience"
	_ "github.com/agentuity/go-plancache/schema"
	_ "github.com/agentuity/go-plancache/sqlparse"
	_ "github.com/agentuity/go-plancache/telemetry"
	_ "github.com/agentuity/go-plancache/tui"
)

func main() {
	fmt.Println("plancache: run ./cmd/plancache for the command line tool")
}
