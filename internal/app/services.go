package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/platform/gcp"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/services"
	"github.com/yungbote/component-registry/internal/upload"
)

type Services struct {
	Classification services.ClassificationService
	Application    services.ApplicationService
	Catalog        services.CatalogService
	Publish        services.PublishService
	Upload         services.UploadService
	Bucket         gcp.BucketService
	Signer         *services.SupplementSigner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Services{}, err
	}

	signer := services.NewSupplementSigner(cfg.SupplementSigningKey)
	classification := services.NewClassificationService(db, log, r.Category)
	application := services.NewApplicationService(db, log, r.Application, r.Component, r.ComponentVersion, classification, signer)
	catalog := services.NewCatalogService(db, log, r.Component, r.ComponentVersion, bucket)
	publish := services.NewPublishService(db, log, r.Component, r.ComponentVersion, r.Application)

	validator := upload.NewValidator(log, application, classification, signer, upload.Config{
		MaxTotalBytes: cfg.UploadMaxBytes,
		MaxFileCount:  cfg.UploadMaxFiles,
	})
	uploads := services.NewUploadService(db, log, validator, r.Application, r.Component, r.ComponentVersion, catalog, bucket)

	return Services{
		Classification: classification,
		Application:    application,
		Catalog:        catalog,
		Publish:        publish,
		Upload:         uploads,
		Bucket:         bucket,
		Signer:         signer,
	}, nil
}
