package config

type AppConfig struct {
	APIPort string `env:"PORT,required" envDefault:"12333"`
	APIKey  string `env:"API_KEY,required"`
}

type MailsyncDatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"disable"`
}

type ProviderConfig struct {
	APIBaseURL   string `env:"MAIL_PROVIDER_API_URL" envDefault:"https://api.aurinko.io"`
	ClientID     string `env:"MAIL_PROVIDER_CLIENT_ID"`
	ClientSecret string `env:"MAIL_PROVIDER_CLIENT_SECRET"`
	// RecordsPerPage is the bodyType/page-size hint sent on each change-stream request
	RecordsPerPage int `env:"MAIL_PROVIDER_RECORDS_PER_PAGE" envDefault:"50"`
}

type AIConfig struct {
	APIBaseURL     string `env:"AI_API_URL" envDefault:"https://api.openai.com/v1"`
	APIKey         string `env:"AI_API_KEY"`
	Model          string `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel string `env:"AI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
}

type R2StorageConfig struct {
	AccountID             string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID           string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret       string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
}

type EventsConfig struct {
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type SyncConfig struct {
	// ThrottleInterval is the minimum gap between incremental syncs per account
	ThrottleIntervalSeconds int `env:"SYNC_THROTTLE_INTERVAL_SECONDS" envDefault:"90"`
	MaxPages                int `env:"SYNC_MAX_PAGES" envDefault:"1000"`
	CorrelationBucketMs     int64 `env:"SYNC_CORRELATION_BUCKET_MS" envDefault:"10000"`
}
