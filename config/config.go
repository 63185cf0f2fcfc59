package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type ABFIConfiguration struct {
	Dsn                  string
	ManagementDsn        string
	ListenAddr           string
	LogMode              string
	SweepIntervalMinutes int
}

func LoadEnvConfig(configName string) ABFIConfiguration {
	err := godotenv.Load(configName)
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	dsn := os.Getenv("ABFI_DSN")
	managementDsn := os.Getenv("ABFI_MANAGEMENT_DSN")

	listenAddr := os.Getenv("ABFI_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	logMode := os.Getenv("ABFI_LOG_MODE")
	if logMode == "" {
		logMode = "dev"
	}

	sweepInterval := 60
	if raw := os.Getenv("ABFI_SWEEP_INTERVAL_MINUTES"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("failed to parse ABFI_SWEEP_INTERVAL_MINUTES: %v", err)
		}
		sweepInterval = parsed
	}

	return ABFIConfiguration{
		Dsn:                  dsn,
		ManagementDsn:        managementDsn,
		ListenAddr:           listenAddr,
		LogMode:              logMode,
		SweepIntervalMinutes: sweepInterval,
	}
}
