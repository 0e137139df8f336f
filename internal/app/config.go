package app

import (
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/utils"
)

type Config struct {
	JWTSecretKey          string
	SupplementSigningKey  string
	UploadMaxBytes        int64
	UploadMaxFiles        int
	ClassificationSeed    string
	Port                  string
	Environment           string
	Version               string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		JWTSecretKey:         utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		SupplementSigningKey: utils.GetEnv("SUPPLEMENT_SIGNING_KEY", "", log),
		UploadMaxBytes:       utils.GetEnvAsInt64("UPLOAD_MAX_BYTES", 104857600, log),
		UploadMaxFiles:       utils.GetEnvAsInt("UPLOAD_MAX_FILES", 500, log),
		ClassificationSeed:   utils.GetEnv("CLASSIFICATION_SEED_PATH", "", log),
		Port:                 utils.GetEnv("PORT", "8080", log),
		Environment:          utils.GetEnv("APP_ENV", "development", log),
		Version:              utils.GetEnv("APP_VERSION", "dev", log),
	}
}
