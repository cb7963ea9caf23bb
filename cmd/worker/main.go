package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"precheck/internal/agents"
	"precheck/internal/config"
	"precheck/internal/gateway"
	"precheck/internal/objstore"
	"precheck/internal/retrieval"
	"precheck/internal/storage"
	"precheck/internal/vector"
	"precheck/internal/workflows"
)

// queueSpec ties a stage queue to its worker concurrency.
type queueSpec struct {
	Name        string
	Concurrency int
}

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	gw, err := gateway.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	store, err := objstore.NewMinioStore(objstore.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal(err)
	}

	a := agents.New(agents.Deps{
		Config:    cfg,
		Tasks:     storage.NewTaskRepo(db),
		Events:    storage.NewEventRepo(db),
		Clauses:   storage.NewClauseRepo(db),
		Risks:     storage.NewRiskRepo(db),
		KB:        storage.NewKBRepo(db),
		Hits:      storage.NewHitsRepo(db),
		Contracts: storage.NewContractRepo(db),
		Reports:   storage.NewReportRepo(db),
		Gateway:   gw,
		Retrieval: retrieval.NewService(gw, gw, vector.NewSearcher(db.Pool), nil),
		Store:     store,
	})

	queues := []queueSpec{
		{workflows.QueueOrchestrator, cfg.OrchestratorConcurrency},
		{workflows.QueueParse, cfg.ParseConcurrency},
		{workflows.QueueSplit, cfg.SplitConcurrency},
		{workflows.QueueRules, cfg.RulesConcurrency},
		{workflows.QueueKBRetrieval, cfg.KBRetrievalConcurrency},
		{workflows.QueueLLMRisk, cfg.LLMRiskConcurrency},
		{workflows.QueueEvidence, cfg.EvidenceConcurrency},
		{workflows.QueueQC, cfg.QCConcurrency},
		{workflows.QueueReport, cfg.ReportConcurrency},
		{workflows.QueueKBIngest, cfg.KBIngestConcurrency},
	}

	workers := make([]worker.Worker, 0, len(queues))
	for _, q := range queues {
		w := worker.New(c, workflows.TaskQueue(cfg.QueuePrefix, q.Name), worker.Options{
			MaxConcurrentActivityExecutionSize: q.Concurrency,
		})
		// Workflows run on the orchestrator queue; every queue gets the
		// full activity set so registration stays uniform.
		if q.Name == workflows.QueueOrchestrator || q.Name == workflows.QueueKBIngest {
			workflows.RegisterWorkflows(w)
		}
		workflows.RegisterActivities(w, a)
		if err := w.Start(); err != nil {
			log.Fatal(err)
		}
		workers = append(workers, w)
	}

	log.Printf("precheck worker connected to %s prefix=%s provider=%s queues=%d",
		cfg.TemporalAddress, cfg.QueuePrefix, cfg.LLMProvider, len(queues))
	<-worker.InterruptCh()
	for _, w := range workers {
		w.Stop()
	}
}
