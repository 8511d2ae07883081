// Command seed drives a canned container lifecycle against a running
// command API: create a small fleet at zone-1/port-1, reserve two containers
// toward other zones, then walk one of them through the full
// load/board/depart/arrive/offboard/offload/release cycle. It waits on the
// projection handshake between steps instead of sleeping.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/cargotrail/project/internal/platform/env"
)

const fleetSize = 6

type commandResponse struct {
	ContainerID string `json:"container_id"`
	CommandID   string `json:"command_id"`
	Sequence    uint64 `json:"sequence"`
}

type inventoryView struct {
	ZoneName            string    `json:"zone_name"`
	PortName            string    `json:"port_name"`
	AvailableContainers int       `json:"available_containers"`
	ForecastContainers  int       `json:"forecast_containers"`
	LastUpdated         time.Time `json:"last_updated"`
}

type client struct {
	base string
	http *http.Client
}

func main() {
	c := &client{
		base: env.String("SEED_API_BASE", "http://localhost:8080"),
		http: &http.Client{Timeout: env.Duration("SEED_REQUEST_TIMEOUT", 10*time.Second)},
	}

	start := time.Now().UTC()
	ids := make([]string, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		resp, err := c.post("/api/v1/containers", map[string]any{
			"size":      100,
			"zone_name": "zone-1",
			"port_name": "port-1",
		})
		if err != nil {
			log.Fatalf("create container: %v", err)
		}
		ids = append(ids, resp.ContainerID)
	}
	inv, err := c.waitInventory("zone-1", "port-1", start)
	if err != nil {
		log.Fatalf("wait for created inventory: %v", err)
	}
	log.Printf("created %d containers, zone-1/port-1 available=%d", fleetSize, inv.AvailableContainers)

	reserveAt := time.Now().UTC()
	if _, err := c.command(ids[0], map[string]any{
		"action":      "reserve",
		"shipment_id": uuid.NewString(),
		"dest_zone":   "zone-3",
		"dest_port":   "port-3",
	}); err != nil {
		log.Fatalf("reserve container 1: %v", err)
	}
	if _, err := c.command(ids[1], map[string]any{
		"action":      "reserve",
		"shipment_id": uuid.NewString(),
		"dest_zone":   "zone-5",
		"dest_port":   "port-5",
	}); err != nil {
		log.Fatalf("reserve container 2: %v", err)
	}
	inv, err = c.waitInventory("zone-1", "port-1", reserveAt)
	if err != nil {
		log.Fatalf("wait for reserved inventory: %v", err)
	}
	log.Printf("after reservations, zone-1/port-1 available=%d", inv.AvailableContainers)

	steps := []map[string]any{
		{"action": "load", "used_size": 80},
		{"action": "board"},
		{"action": "depart"},
		{"action": "arrive"},
		{"action": "offboard"},
		{"action": "offload"},
		{"action": "release"},
	}
	for _, step := range steps {
		resp, err := c.command(ids[0], step)
		if err != nil {
			log.Fatalf("%s container 1: %v", step["action"], err)
		}
		log.Printf("%s committed at sequence %d", step["action"], resp.Sequence)
	}

	state, err := c.getJSON("/api/v1/containers/" + ids[0])
	if err != nil {
		log.Fatalf("read container 1: %v", err)
	}
	fmt.Printf("container 1 final state: %s\n", state)
}

func (c *client) post(path string, body map[string]any) (commandResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return commandResponse{}, err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return commandResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return commandResponse{}, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return commandResponse{}, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, raw)
	}
	var out commandResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return commandResponse{}, err
	}
	return out, nil
}

func (c *client) command(containerID string, body map[string]any) (commandResponse, error) {
	return c.post("/api/v1/containers/"+containerID+"/commands", body)
}

func (c *client) waitInventory(zone, port string, since time.Time) (inventoryView, error) {
	q := url.Values{}
	q.Set("zone", zone)
	q.Set("port", port)
	q.Set("since", since.Format(time.RFC3339Nano))
	raw, err := c.getJSON("/api/v1/inventory/wait?" + q.Encode())
	if err != nil {
		return inventoryView{}, err
	}
	var inv inventoryView
	if err := json.Unmarshal(raw, &inv); err != nil {
		return inventoryView{}, err
	}
	return inv, nil
}

func (c *client) getJSON(path string) ([]byte, error) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, raw)
	}
	return raw, nil
}
