package main

import (
	"github.com/sol1corejz/voidshop/cmd/config"
	"github.com/sol1corejz/voidshop/internal/logger"
	"github.com/sol1corejz/voidshop/internal/stubserver"
	"go.uber.org/zap"
)

func main() {
	config.ParseFlags()

	if err := logger.Initialize(config.LogLevel); err != nil {
		logger.Log.Fatal("Failed to initialize logger", zap.Error(err))
	}

	server := stubserver.New()
	if err := server.Run(config.StubAddress); err != nil {
		logger.Log.Fatal("Failed to run stub backend", zap.Error(err))
	}
}
