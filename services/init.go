package services

import (
	"time"

	"github.com/dealflow/mailsync/config"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/repository"
	"github.com/dealflow/mailsync/services/ai"
	"github.com/dealflow/mailsync/services/attachments"
	"github.com/dealflow/mailsync/services/embedding"
	"github.com/dealflow/mailsync/services/events"
	"github.com/dealflow/mailsync/services/provider"
	"github.com/dealflow/mailsync/services/reconcile"
	"github.com/dealflow/mailsync/services/search"
	"github.com/dealflow/mailsync/services/storage"
	syncsvc "github.com/dealflow/mailsync/services/sync"
)

type Services struct {
	ProviderClient    interfaces.ProviderClient
	AIService         interfaces.AIService
	EmbeddingService  interfaces.EmbeddingService
	SearchService     interfaces.SearchService
	StorageService    interfaces.StorageService
	AttachmentService interfaces.AttachmentService
	ReconcileService  interfaces.ReconcileService
	SyncService       interfaces.SyncService
	EventPublisher    interfaces.EventPublisher
}

func InitServices(cfg *config.Config, repos *repository.Repositories, log logger.Logger) *Services {
	providerClient := provider.NewProviderClient(cfg.ProviderConfig)
	aiService := ai.NewAIService(cfg.AIConfig)
	embeddingService := embedding.NewEmbeddingService(cfg.AIConfig)
	searchService := search.NewSearchService(repos.AccountRepository, embeddingService, log)
	eventPublisher := events.NewRabbitPublisher(cfg.EventsConfig.RabbitMQURL, log)

	storageService := storage.NewR2StorageService(
		cfg.R2StorageConfig.AccountID,
		cfg.R2StorageConfig.AccessKeyID,
		cfg.R2StorageConfig.AccessKeySecret,
		cfg.R2StorageConfig.EmailAttachmentBucket,
	)

	attachmentService := attachments.NewAttachmentService(
		repos.EmailAttachmentRepository,
		repos.EmailRepository,
		repos.AccountRepository,
		providerClient,
		storageService,
		aiService,
		attachments.NewDocumentParser(),
		log,
	)

	reconcileService := reconcile.NewReconcileService(
		repos.EmailRepository,
		repos.EmailThreadRepository,
		repos.EmailAddressRepository,
		repos.EmailAttachmentRepository,
		attachmentService,
		eventPublisher,
		log,
		cfg.SyncConfig.CorrelationBucketMs,
	)

	throttle := syncsvc.NewThrottleGuard(time.Duration(cfg.SyncConfig.ThrottleIntervalSeconds) * time.Second)
	syncService := syncsvc.NewSyncService(
		repos.AccountRepository,
		providerClient,
		reconcileService,
		searchService,
		eventPublisher,
		throttle,
		log,
		cfg.SyncConfig.MaxPages,
	)

	return &Services{
		ProviderClient:    providerClient,
		AIService:         aiService,
		EmbeddingService:  embeddingService,
		SearchService:     searchService,
		StorageService:    storageService,
		AttachmentService: attachmentService,
		ReconcileService:  reconcileService,
		SyncService:       syncService,
		EventPublisher:    eventPublisher,
	}
}
