package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/awmpietro/golang-workflow-engine-case/internal/app"
	"github.com/awmpietro/golang-workflow-engine-case/internal/transport/rundto"
)

type Handler struct {
	svc app.WorkflowService
}

func NewHandler(svc app.WorkflowService) *Handler {
	return &Handler{svc: svc}
}

// Handle assume que o API Gateway roteia tudo de /graph/* para esta Lambda.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := req.RequestContext.HTTP.Method
	path := req.RequestContext.HTTP.Path

	switch {
	case method == http.MethodPost && path == "/graph/create":
		return h.createGraph(ctx, req), nil
	case method == http.MethodPost && path == "/graph/run":
		return h.startRun(ctx, req), nil
	case method == http.MethodPost && path == "/graph/run_sync":
		return h.runSync(ctx, req), nil
	case method == http.MethodGet && strings.HasPrefix(path, "/graph/state/"):
		return h.runState(ctx, strings.TrimPrefix(path, "/graph/state/")), nil
	default:
		return jsonResp(http.StatusNotFound, map[string]any{"error": "not found"}), nil
	}
}

func (h *Handler) createGraph(ctx context.Context, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	var in rundto.CreateGraphRequest
	if resp, ok := decodeBody(req, &in); !ok {
		return resp
	}

	var graphID string
	var err error
	if in.GraphDOT != "" {
		graphID, err = h.svc.CreateGraphFromDOT(ctx, in.GraphDOT)
	} else {
		graphID, err = h.svc.CreateGraph(ctx, in.Definition())
	}
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "create graph failed", "details": err.Error()})
	}

	return jsonResp(http.StatusOK, rundto.CreateGraphResponse{GraphID: graphID})
}

func (h *Handler) startRun(ctx context.Context, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	var in rundto.StartRunRequest
	if resp, ok := decodeBody(req, &in); !ok {
		return resp
	}

	runID, err := h.svc.StartRun(ctx, in.GraphID, in.InitialState)
	if err != nil {
		return jsonResp(http.StatusBadRequest, startRunErrorBody(err))
	}

	return jsonResp(http.StatusOK, rundto.StartRunResponse{RunID: runID})
}

func (h *Handler) runSync(ctx context.Context, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	var in rundto.StartRunRequest
	if resp, ok := decodeBody(req, &in); !ok {
		return resp
	}

	run, err := h.svc.RunSync(ctx, in.GraphID, in.InitialState)
	if err != nil {
		return jsonResp(http.StatusBadRequest, startRunErrorBody(err))
	}

	return jsonResp(http.StatusOK, run)
}

func (h *Handler) runState(ctx context.Context, runID string) events.APIGatewayV2HTTPResponse {
	if runID == "" || strings.Contains(runID, "/") {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "run_id is required"})
	}

	run, ok, err := h.svc.GetRun(ctx, runID)
	if err != nil {
		return jsonResp(http.StatusInternalServerError, map[string]any{"error": "load run failed", "details": err.Error()})
	}
	if !ok {
		return jsonResp(http.StatusNotFound, map[string]any{"error": "run_id not found"})
	}

	return jsonResp(http.StatusOK, run)
}

func decodeBody(req events.APIGatewayV2HTTPRequest, out any) (events.APIGatewayV2HTTPResponse, bool) {
	body, err := readBody(req)
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid body", "details": err.Error()}), false
	}
	if err := json.Unmarshal(body, out); err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()}), false
	}
	return events.APIGatewayV2HTTPResponse{}, true
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func jsonResp(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}

func startRunErrorBody(err error) map[string]any {
	if errors.Is(err, app.ErrGraphNotFound) {
		return map[string]any{"error": "graph_id not found"}
	}
	return map[string]any{"error": "run failed", "details": err.Error()}
}
