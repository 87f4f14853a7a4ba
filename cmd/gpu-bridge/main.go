package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/config"
	"github.com/fxnlabs/gpu-bridge/internal/logger"
)

func main() {
	var configPath string
	var cfg *config.Config
	var rootLogger *zap.Logger

	app := &cli.App{
		Name:  "gpu-bridge",
		Usage: "Vendor-neutral GPU telemetry over NVML or ROCm SMI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to the config file; defaults apply when omitted",
				EnvVars:     []string{"GPU_BRIDGE_CONFIG"},
				Destination: &configPath,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if configPath != "" {
				cfg, err = config.LoadConfig(configPath)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			rootLogger = zapLogger.Named("gpu-bridge")
			return nil
		},
		Commands: []*cli.Command{
			devicesCommand(&rootLogger, &cfg),
			stateCommand(&rootLogger, &cfg),
			processesCommand(&rootLogger, &cfg),
			exportCommand(&rootLogger, &cfg),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if rootLogger != nil {
			rootLogger.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
