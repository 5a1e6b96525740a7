package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/config"
	infraLark "github.com/garyjia/yacht-customization/internal/infrastructure/external/lark"
)

// Sends one Lark text message with the configured credentials. Useful to
// check app permissions before enabling assignment notifications.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	openID := flag.String("open-id", "", "recipient Lark open_id (ou_...)")
	text := flag.String("text", "Yacht customization notification test", "message text")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Lark.AppID == "" {
		log.Fatal("LARK_APP_ID and LARK_APP_SECRET must be set")
	}
	if *openID == "" {
		log.Fatal("-open-id is required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
		Timeout:   cfg.Lark.APITimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messageID, err := infraLark.NewMessenger(sdk, logger).SendText(ctx, *openID, *text)
	if err != nil {
		log.Fatalf("Send failed: %v", err)
	}
	fmt.Printf("Message sent: %s\n", messageID)
}
