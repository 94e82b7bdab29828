package db

import (
	"log"
	"strconv"
	"time"

	"bridge-relay/internal/config"
	"bridge-relay/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB connects to Postgres and migrates the relay schema.
func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	if err := DB.AutoMigrate(
		&models.BridgeRequestRecord{},
		&models.ValidatorVote{},
		&models.TimelockRecord{},
		&models.RoleGrant{},
		&models.AssetWhitelistEntry{},
		&models.GlobalConfig{},
		&models.RelayEvent{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	initGlobalConfig(DB)

	log.Println("Database schema migrated successfully")
}

// initGlobalConfig seeds the persisted settings rows on first boot.
func initGlobalConfig(db *gorm.DB) {
	defaults := []models.GlobalConfig{
		{ConfigKey: "paused", ConfigValue: "false", Description: "Lifecycle operations halted"},
		{ConfigKey: "fee_bps", ConfigValue: strconv.FormatUint(config.AppConfig.Bridge.FeeBps, 10), Description: "Bridge fee in basis points"},
	}
	for _, def := range defaults {
		var existing models.GlobalConfig
		if err := db.Where("config_key = ?", def.ConfigKey).First(&existing).Error; err != nil {
			def.UpdatedBy = "system"
			def.CreatedAt = time.Now()
			def.UpdatedAt = time.Now()
			if err := db.Create(&def).Error; err != nil {
				log.Printf("Failed to seed global config %s: %v", def.ConfigKey, err)
			}
		}
	}
}
