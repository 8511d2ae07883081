package commandapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cargotrail/project/internal/app/query"
	"github.com/cargotrail/project/internal/container"
	"github.com/cargotrail/project/internal/dispatch"
	"github.com/cargotrail/project/internal/eventlog"
)

type InventoryReader interface {
	GetInventory(ctx context.Context, zoneName, portName string) (query.InventoryView, error)
	WaitForProjection(ctx context.Context, zoneName, portName string, since time.Time, timeout time.Duration) (query.InventoryView, error)
}

type ContainerStateReader interface {
	GetContainer(ctx context.Context, containerID string) (container.State, uint64, error)
}

type Handler struct {
	Service     *Service
	Inventory   InventoryReader
	Containers  ContainerStateReader
	WaitTimeout time.Duration
}

func NewHandler(service *Service, inventory InventoryReader, containers ContainerStateReader, waitTimeout time.Duration) *Handler {
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &Handler{
		Service:     service,
		Inventory:   inventory,
		Containers:  containers,
		WaitTimeout: waitTimeout,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/v1/containers", h.handleCreate)
	r.Post("/api/v1/containers/{containerID}/commands", h.handleCommand)
	r.Get("/api/v1/containers/{containerID}", h.handleGetContainer)
	r.Get("/api/v1/inventory", h.handleGetInventory)
	r.Get("/api/v1/inventory/wait", h.handleWaitInventory)

	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload")
		return
	}
	resp, err := h.Service.Create(r.Context(), req)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload")
		return
	}
	resp, err := h.Service.Execute(r.Context(), chi.URLParam(r, "containerID"), req)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type containerResponse struct {
	State    container.State `json:"state"`
	Sequence uint64          `json:"sequence"`
}

func (h *Handler) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	state, sequence, err := h.Containers.GetContainer(r.Context(), chi.URLParam(r, "containerID"))
	if err != nil {
		if errors.Is(err, query.ErrContainerNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, containerResponse{State: state, Sequence: sequence})
}

func (h *Handler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	zone := r.URL.Query().Get("zone")
	port := r.URL.Query().Get("port")
	if zone == "" || port == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_query", "zone and port are required")
		return
	}
	v, err := h.Inventory.GetInventory(r.Context(), zone, port)
	if err != nil {
		if errors.Is(err, query.ErrInventoryNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "no inventory for this zone and port")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// handleWaitInventory is the read-after-write handshake: it blocks until the
// inventory row's last_updated reaches the caller-supplied commit time, or
// fails with 504 when the staleness timeout expires.
func (h *Handler) handleWaitInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone := q.Get("zone")
	port := q.Get("port")
	if zone == "" || port == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_query", "zone and port are required")
		return
	}
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_query", "since must be RFC3339")
			return
		}
		since = parsed
	}
	v, err := h.Inventory.WaitForProjection(r.Context(), zone, port, since, h.WaitTimeout)
	if err != nil {
		if errors.Is(err, query.ErrProjectionStale) {
			h.writeError(w, http.StatusGatewayTimeout, "projection_stale", err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

type errorResponse struct {
	Error  string           `json:"error"`
	Detail string           `json:"detail,omitempty"`
	State  *container.State `json:"state,omitempty"`
}

func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	var conflict *container.StateConflictError
	switch {
	case errors.As(err, &conflict):
		// Return the known state so clients can decide whether to retry.
		h.writeJSON(w, http.StatusConflict, errorResponse{
			Error:  "state_conflict",
			Detail: conflict.Error(),
			State:  &conflict.State,
		})
	case errors.Is(err, eventlog.ErrConcurrencyConflict):
		h.writeJSON(w, http.StatusConflict, errorResponse{
			Error:  "concurrency_conflict",
			Detail: err.Error(),
		})
	case errors.Is(err, dispatch.ErrContainerNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case container.IsValidationError(err),
		errors.Is(err, ErrUnsupportedAction),
		errors.Is(err, ErrContainerIDRequired):
		h.writeError(w, http.StatusBadRequest, "validation", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind, detail string) {
	h.writeJSON(w, status, errorResponse{Error: kind, Detail: detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
