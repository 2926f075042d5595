package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/nativehost/internal/dispatch"
	"github.com/nerrad567/nativehost/internal/history"
)

// invokeRequest is the body of POST /api/v1/invoke. Data is base64 in JSON.
type invokeRequest struct {
	Operation string   `json:"operation"`
	Args      []string `json:"args"`
	Data      []byte   `json:"data,omitempty"`
}

func (r invokeRequest) toDispatch() dispatch.Request {
	return dispatch.Request{Operation: r.Operation, Args: r.Args, Data: r.Data}
}

// maxHistoryLimit caps ?limit on the history endpoint.
const maxHistoryLimit = 500

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if !canInvoke(r.Context()) {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "token scope does not allow invoking operations")
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Operation == "" {
		writeBadRequest(w, "operation is required")
		return
	}

	resp, err := s.invoke(r.Context(), req.toDispatch())
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// invoke is shared by the HTTP and WebSocket paths.
func (s *Server) invoke(ctx context.Context, req dispatch.Request) (dispatch.Response, error) {
	resp, err := s.invoker.Dispatch(ctx, req)
	if err != nil {
		s.logger.Debug("operation failed", "operation", req.Operation, "error", err)
	}
	return resp, err
}

type operationLister interface {
	Operations() []string
}

func (s *Server) handleOperations(w http.ResponseWriter, _ *http.Request) {
	ops := []string{}
	if l, ok := s.invoker.(operationLister); ok {
		ops = l.Operations()
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (s *Server) handleListProcesses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"processes": s.processes.List()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, history.ErrDisabled.Error())
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("reading run history", "error", err)
		writeInternalError(w, "failed to read run history")
		return
	}
	if runs == nil {
		runs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
