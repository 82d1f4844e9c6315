package main

import (
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/awmpietro/golang-workflow-engine-case/internal/app"
	"github.com/awmpietro/golang-workflow-engine-case/internal/config"
	"github.com/awmpietro/golang-workflow-engine-case/internal/store"
	"github.com/awmpietro/golang-workflow-engine-case/internal/transport/httptransport"
	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow/tools"
)

func main() {
	cfg := config.Load()

	durable, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	st := store.NewCached(durable)

	observer := workflow.NewAsyncStepObserver(workflow.NewStepLatencyLogger(log.Default()), cfg.ObsBuffer)
	defer observer.Close()

	engine := workflow.NewEngine(
		st,
		tools.Builtin(),
		workflow.WithMaxSteps(cfg.MaxSteps),
		workflow.WithStepObserver(observer),
	)

	svc := app.NewService(st, workflow.NewCompiler(), engine)
	h := httptransport.NewHandler(svc)

	mux := http.NewServeMux()
	h.Routes(mux)

	log.Printf("listening on %s (store=%s)", cfg.HTTPAddr, cfg.StoreBackend)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, mux))
}

func buildStore(cfg config.Runtime) (store.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.OpenSQLite(cfg.SQLitePath)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedis(client, ""), nil
	default:
		return store.NewMemory(), nil
	}
}
