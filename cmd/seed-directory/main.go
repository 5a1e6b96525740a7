package main

import (
	"context"
	"flag"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/config"
	"github.com/garyjia/yacht-customization/internal/container"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/pkg/utils"
)

// userRecord is one entry of the seed file
type userRecord struct {
	ID         string   `mapstructure:"id"`
	FullName   string   `mapstructure:"full_name"`
	Email      string   `mapstructure:"email"`
	LarkOpenID string   `mapstructure:"lark_open_id"`
	Roles      []string `mapstructure:"roles"`
}

// Mirrors users and roles from a YAML export of the identity system into
// the local directory tables.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	seedPath := flag.String("file", "configs/users.yaml", "YAML file with a top-level users list")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	v := viper.New()
	v.SetConfigFile(*seedPath)
	if err := v.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read seed file", zap.Error(err))
	}
	var records []userRecord
	if err := v.UnmarshalKey("users", &records); err != nil {
		logger.Fatal("Failed to parse seed file", zap.Error(err))
	}

	db, err := container.ProvideDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Conn.Close()

	repos, err := container.ProvideRepositories(db.TransactionMgr, logger)
	if err != nil {
		logger.Fatal("Failed to create repositories", zap.Error(err))
	}

	ctx := context.Background()
	seeded := 0
	for _, rec := range records {
		if rec.Email != "" {
			if err := utils.ValidateEmail(rec.Email); err != nil {
				logger.Warn("Skipping user", zap.String("user_id", rec.ID), zap.Error(err))
				continue
			}
		}

		err := db.TransactionMgr.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := repos.Directory.UpsertUser(txCtx, &entity.User{
				ID:         rec.ID,
				FullName:   rec.FullName,
				Email:      rec.Email,
				LarkOpenID: rec.LarkOpenID,
			}); err != nil {
				return err
			}
			for _, role := range rec.Roles {
				if err := repos.Directory.AssignRole(txCtx, rec.ID, entity.Role(role)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logger.Error("Failed to seed user", zap.String("user_id", rec.ID), zap.Error(err))
			continue
		}
		seeded++
	}

	logger.Info("Directory seeded", zap.Int("users", seeded), zap.Int("records", len(records)))
}
