package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/interfaces"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
	"github.com/m-mizutani/pagecraft/pkg/utils/async"
	"github.com/m-mizutani/pagecraft/pkg/utils/errutil"
)

// attachments may be inlined as data URIs
const maxRequestBody = 10 << 20

// TaskHandler serves POST /handle_task
type TaskHandler struct {
	taskUC     interfaces.TaskUseCase
	secret     *secretValidator
	schema     *openapi3.Schema
	dispatcher *async.Dispatcher
}

// NewTaskHandler creates a TaskHandler. Rounds run in the background when
// dispatcher is not nil.
func NewTaskHandler(
	taskUC interfaces.TaskUseCase,
	secret string,
	schema *openapi3.Schema,
	dispatcher *async.Dispatcher,
) *TaskHandler {
	return &TaskHandler{
		taskUC:     taskUC,
		secret:     newSecretValidator(secret),
		schema:     schema,
		dispatcher: dispatcher,
	}
}

type taskResponse struct {
	Status    model.RoundStatus `json:"status"`
	Message   string            `json:"message"`
	Round     model.Round       `json:"round"`
	CommitSHA string            `json:"commit_sha,omitempty"`
	PagesURL  string            `json:"pages_url,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// Handle processes a task request
func (h *TaskHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(ctx, w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}

	// Nothing else is looked at before the secret is verified
	secret, _ := raw["secret"].(string)
	if !h.secret.Valid(secret) {
		logger.Warn("Invalid secret")
		writeError(ctx, w, goerr.New("Invalid secret", goerr.T(types.ErrTagAuth)), http.StatusForbidden)
		return
	}

	if err := h.schema.VisitJSON(raw, openapi3.MultiErrors()); err != nil {
		logger.Warn("Request does not match schema", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "invalid request", goerr.T(types.ErrTagValidation)), http.StatusBadRequest)
		return
	}

	var req model.TaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(ctx, w, goerr.Wrap(err, "invalid request", goerr.T(types.ErrTagValidation)), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Invalid task request", "error", err)
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}

	logger.Info("Task request accepted",
		"task", req.Task,
		"round", int(req.Round),
		"nonce", req.Nonce,
		"request", req,
	)

	if h.dispatcher != nil {
		h.dispatcher.Dispatch(ctx, func(ctx context.Context) error {
			_, err := h.taskUC.Run(ctx, &req)
			return err
		})
		writeJSON(ctx, w, http.StatusAccepted, map[string]string{
			"message": fmt.Sprintf("Round %d processing started", req.Round),
		})
		return
	}

	// A started round is not abandoned when the caller disconnects
	result, err := h.taskUC.Run(context.WithoutCancel(ctx), &req)
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			errutil.Handle(ctx, "task round failed", err)
		}
		writeError(ctx, w, err, status)
		return
	}

	resp := &taskResponse{
		Status:   result.Status,
		Message:  resultMessage(result),
		Round:    result.Round,
		Warnings: result.Warnings,
	}
	if result.Record != nil {
		resp.CommitSHA = result.Record.CommitSHA
		resp.PagesURL = result.Record.PagesURL
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

func resultMessage(result *model.RoundResult) string {
	switch result.Status {
	case model.RoundStatusPartial:
		return fmt.Sprintf("Round %d published, but the evaluation endpoint was not notified", result.Round)
	default:
		return fmt.Sprintf("Round %d completed", result.Round)
	}
}

// statusOf maps an error tag to the HTTP status returned to the caller
func statusOf(err error) int {
	switch {
	case goerr.HasTag(err, types.ErrTagValidation):
		return http.StatusBadRequest
	case goerr.HasTag(err, types.ErrTagAuth):
		return http.StatusForbidden
	case goerr.HasTag(err, types.ErrTagHost),
		goerr.HasTag(err, types.ErrTagPublish),
		goerr.HasTag(err, types.ErrTagGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
