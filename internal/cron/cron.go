package cron

import (
	"context"
	"os"
	"sync"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/dealflow/mailsync/interfaces"
	cron_config "github.com/dealflow/mailsync/internal/cron/config"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/tracing"
)

const (
	// GroupSync is the group for sync related jobs
	GroupSync = "sync"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupSync: new(sync.Mutex),
	},
}

type CronManager struct {
	log         logger.Logger
	cron        *cronv3.Cron
	stopCh      chan struct{}
	jobIDs      map[string]cronv3.EntryID
	accountRepo interfaces.AccountRepository
	syncService interfaces.SyncService
}

func NewCronManager(log logger.Logger, accountRepo interfaces.AccountRepository, syncService interfaces.SyncService) *CronManager {
	return &CronManager{
		log:         log,
		stopCh:      make(chan struct{}),
		jobIDs:      make(map[string]cronv3.EntryID),
		accountRepo: accountRepo,
		syncService: syncService,
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleIncrementalSync != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleIncrementalSync, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.syncAllAccounts()
		})
		if err != nil {
			cm.log.Fatalf("Could not add incremental sync cron job: %v", err)
		}
		cm.jobIDs["incremental_sync"] = id
		cm.log.Infof("Registered incremental sync job with schedule: %s", cronConfig.CronScheduleIncrementalSync)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// syncAllAccounts triggers an incremental sync for every known account.
// The throttle guard decides which triggers actually run.
func (cm *CronManager) syncAllAccounts() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.syncAllAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.accountRepo.GetAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts for sync sweep: %v", err)
		return
	}
	span.SetTag("accounts", len(accounts))

	for _, account := range accounts {
		if account.NextDeltaToken == nil || *account.NextDeltaToken == "" {
			// Account never completed its initial sync
			continue
		}
		cm.syncService.TriggerIncrementalSync(ctx, account.ID)
	}
}
