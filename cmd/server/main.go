package main

import (
	"github.com/iou-concept/kompas/internal/server"
	"github.com/iou-concept/kompas/internal/util"
	"github.com/iou-concept/kompas/pkg/logger"
	"github.com/iou-concept/kompas/pkg/logger/console"

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
