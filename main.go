package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Icerzack/chatroom/cmd"
	"github.com/Icerzack/chatroom/internal/rest"
	"github.com/Icerzack/chatroom/internal/utils"
)

func main() {
	bootLogger, _ := zap.NewDevelopment()

	if err := godotenv.Load(); err != nil {
		bootLogger.Info("No .env file found, using system environment variables")
	}

	config, err := cmd.LoadConfig(bootLogger)
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err))
	}
	_ = bootLogger.Sync()

	level, err := zapcore.ParseLevel(config.Apps.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	logger, err := utils.NewCustomLogger(level, config.Apps.LogToFiles)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	restApp := rest.NewRest(&rest.Config{
		Port:                    config.Apps.Rest.Port,
		AllowedOrigin:           config.Apps.Rest.AllowedOrigin,
		MaxMessageSize:          config.Apps.Rest.MaxMessageSize,
		SendBuffer:              config.Apps.Rest.SendBuffer,
		QueueSize:               config.Apps.Rest.QueueSize,
		RoomsStorageType:        config.Storage.Rooms.Type,
		ParticipantsStorageType: config.Storage.Participants.Type,
		Logger:                  logger,
	})

	appsManager := cmd.NewAppsManager(logger)

	appsManager.Register(cmd.RestApp, restApp)
	appsManager.RunAll()
	appsManager.WaitForShutdown()
}
