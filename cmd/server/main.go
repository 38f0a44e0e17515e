package main

import (
	"github.com/OpenTwinHQ/opentwin/backend/internal/server"
	"github.com/OpenTwinHQ/opentwin/backend/internal/util"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
