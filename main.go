package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/config"
	"github.com/dealflow/mailsync/internal/database"
	"github.com/dealflow/mailsync/internal/repository"
	"github.com/dealflow/mailsync/server"
)

func main() {
	app := &cli.App{
		Name:  "mailsync",
		Usage: "email ingestion and reconciliation service",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					_, db := mustInit()
					if err := repository.MigrateDB(db); err != nil {
						return err
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					cfg, db := mustInit()

					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("MailSync starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return err
					}
					return srv.Run()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mustInit() (*config.Config, *gorm.DB) {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}

	db, err := database.NewConnection(&database.DatabaseConfig{
		DBName:          cfg.MailsyncDatabaseConfig.DBName,
		Host:            cfg.MailsyncDatabaseConfig.Host,
		Port:            cfg.MailsyncDatabaseConfig.Port,
		User:            cfg.MailsyncDatabaseConfig.User,
		Password:        cfg.MailsyncDatabaseConfig.Password,
		MaxConn:         cfg.MailsyncDatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.MailsyncDatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.MailsyncDatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.MailsyncDatabaseConfig.LogLevel,
		SSLMode:         cfg.MailsyncDatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	return cfg, db
}
