package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/redis/go-redis/v9"

	"github.com/awmpietro/golang-workflow-engine-case/internal/app"
	"github.com/awmpietro/golang-workflow-engine-case/internal/config"
	"github.com/awmpietro/golang-workflow-engine-case/internal/store"
	"github.com/awmpietro/golang-workflow-engine-case/internal/transport/lambdatransport"
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
	h := lambdatransport.NewHandler(svc)

	lambda.Start(h.Handle)
}

// Lambda instances are ephemeral, so sqlite on local disk would lose data
// between invocations; redis is the durable option here.
func buildStore(cfg config.Runtime) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedis(client, ""), nil
	default:
		return store.NewMemory(), nil
	}
}
