package commandapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cargotrail/project/internal/app/query"
	"github.com/cargotrail/project/internal/dispatch"
	"github.com/cargotrail/project/internal/eventlog"
)

type fakeInventory struct {
	views map[string]query.InventoryView
	stale bool
}

func (f *fakeInventory) key(zone, port string) string { return zone + "/" + port }

func (f *fakeInventory) GetInventory(_ context.Context, zone, port string) (query.InventoryView, error) {
	v, ok := f.views[f.key(zone, port)]
	if !ok {
		return query.InventoryView{}, query.ErrInventoryNotFound
	}
	return v, nil
}

func (f *fakeInventory) WaitForProjection(ctx context.Context, zone, port string, _ time.Time, _ time.Duration) (query.InventoryView, error) {
	if f.stale {
		return query.InventoryView{}, query.ErrProjectionStale
	}
	return f.GetInventory(ctx, zone, port)
}

func newTestServer(t *testing.T, inventory *fakeInventory) (*httptest.Server, eventlog.Log) {
	t.Helper()
	log := eventlog.NewMemoryLog()
	dispatcher := dispatch.NewDispatcher(log, func(string, []byte) error { return nil })
	service := NewService(dispatcher)
	handler := NewHandler(service, inventory, query.NewContainerReader(log), 100*time.Millisecond)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server, log
}

func postJSON(t *testing.T, url string, body map[string]any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func createContainer(t *testing.T, server *httptest.Server) CommandResponse {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/v1/containers", map[string]any{
		"size": 100, "zone_name": "zone-1", "port_name": "port-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create returned %d", resp.StatusCode)
	}
	return decode[CommandResponse](t, resp)
}

func TestCreateContainer(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{})
	created := createContainer(t, server)
	if created.ContainerID == "" || created.Sequence != 1 || created.CommandID == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}
}

func TestCreateContainer_Validation(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{})
	resp := postJSON(t, server.URL+"/api/v1/containers", map[string]any{"size": 100, "port_name": "port-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing zone, got %d", resp.StatusCode)
	}
}

func TestCommand_UnsupportedAction(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{})
	created := createContainer(t, server)
	resp := postJSON(t, server.URL+"/api/v1/containers/"+created.ContainerID+"/commands", map[string]any{"action": "teleport"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported action, got %d", resp.StatusCode)
	}
}

func TestCommand_StateConflictCarriesState(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{})
	created := createContainer(t, server)

	resp := postJSON(t, server.URL+"/api/v1/containers/"+created.ContainerID+"/commands", map[string]any{"action": "board"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for board before load, got %d", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Error != "state_conflict" || body.State == nil {
		t.Fatalf("conflict body should carry the current state: %+v", body)
	}
	if body.State.Operational != "released" {
		t.Fatalf("unexpected state in conflict body: %+v", body.State)
	}
}

func TestCommand_UnknownContainer(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{})
	resp := postJSON(t, server.URL+"/api/v1/containers/ghost/commands", map[string]any{"action": "board"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown container, got %d", resp.StatusCode)
	}
}

func TestGetContainer(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{})
	created := createContainer(t, server)

	resp, err := http.Get(server.URL + "/api/v1/containers/" + created.ContainerID)
	if err != nil {
		t.Fatalf("GET container: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[containerResponse](t, resp)
	if body.State.ID != created.ContainerID || body.Sequence != 1 {
		t.Fatalf("unexpected container body: %+v", body)
	}

	missing, err := http.Get(server.URL + "/api/v1/containers/ghost")
	if err != nil {
		t.Fatalf("GET missing container: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown container, got %d", missing.StatusCode)
	}
}

func TestGetInventory(t *testing.T) {
	inventory := &fakeInventory{views: map[string]query.InventoryView{
		"zone-1/port-1": {ZoneName: "zone-1", PortName: "port-1", AvailableContainers: 3},
	}}
	server, _ := newTestServer(t, inventory)

	resp, err := http.Get(server.URL + "/api/v1/inventory?zone=zone-1&port=port-1")
	if err != nil {
		t.Fatalf("GET inventory: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[query.InventoryView](t, resp)
	if body.AvailableContainers != 3 {
		t.Fatalf("unexpected inventory body: %+v", body)
	}

	missing, err := http.Get(server.URL + "/api/v1/inventory?zone=zone-9&port=port-9")
	if err != nil {
		t.Fatalf("GET inventory: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", missing.StatusCode)
	}

	bad, err := http.Get(server.URL + "/api/v1/inventory?zone=zone-1")
	if err != nil {
		t.Fatalf("GET inventory: %v", err)
	}
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing port, got %d", bad.StatusCode)
	}
}

func TestWaitInventory_StalenessTimeout(t *testing.T) {
	server, _ := newTestServer(t, &fakeInventory{stale: true})
	resp, err := http.Get(server.URL + "/api/v1/inventory/wait?zone=zone-1&port=port-1")
	if err != nil {
		t.Fatalf("GET wait: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 on stale projection, got %d", resp.StatusCode)
	}
}
