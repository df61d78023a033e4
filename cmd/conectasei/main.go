package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/app"
	"github.com/IzacPS/conecta-sei-backend/internal/common"
)

// configPaths allows multiple -config flags; later files override earlier ones
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()
	common.InstallCrashHandler("./logs")

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("ConectaSEI version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// .env is optional; environment variables always win over config files
	_ = godotenv.Load()

	if len(configFiles) == 0 {
		if _, err := os.Stat("conectasei.toml"); err == nil {
			configFiles = append(configFiles, "conectasei.toml")
		} else if _, err := os.Stat("deployments/local/conectasei.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/conectasei.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
		os.Exit(1)
	}

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Msg("ConectaSEI pipeline ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	application.Shutdown()
}
