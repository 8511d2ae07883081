package commandapi

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nuid"

	"github.com/cargotrail/project/internal/container"
	"github.com/cargotrail/project/internal/dispatch"
)

var ErrUnsupportedAction = errors.New("unsupported action")
var ErrContainerIDRequired = errors.New("container id is required")

type Service struct {
	Dispatcher   *dispatch.Dispatcher
	NewCommandID func() string
}

func NewService(dispatcher *dispatch.Dispatcher) *Service {
	return &Service{
		Dispatcher:   dispatcher,
		NewCommandID: nuid.Next,
	}
}

type CreateRequest struct {
	Size     float64 `json:"size"`
	ZoneName string  `json:"zone_name"`
	PortName string  `json:"port_name"`
}

type CommandRequest struct {
	Action     string  `json:"action"`
	ShipmentID string  `json:"shipment_id"`
	DestZone   string  `json:"dest_zone"`
	DestPort   string  `json:"dest_port"`
	UsedSize   float64 `json:"used_size"`
}

type CommandResponse struct {
	ContainerID string `json:"container_id"`
	CommandID   string `json:"command_id"`
	Sequence    uint64 `json:"sequence"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (CommandResponse, error) {
	commandID := s.NewCommandID()
	result, err := s.Dispatcher.Execute(ctx, commandID, "", container.Create{
		Size:     req.Size,
		ZoneName: strings.TrimSpace(req.ZoneName),
		PortName: strings.TrimSpace(req.PortName),
	})
	if err != nil {
		return CommandResponse{}, err
	}
	return CommandResponse{ContainerID: result.ContainerID, CommandID: commandID, Sequence: result.Sequence}, nil
}

func (s *Service) Execute(ctx context.Context, containerID string, req CommandRequest) (CommandResponse, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return CommandResponse{}, ErrContainerIDRequired
	}

	var cmd container.Command
	switch strings.TrimSpace(strings.ToLower(req.Action)) {
	case "reserve":
		cmd = container.Reserve{
			ShipmentID: strings.TrimSpace(req.ShipmentID),
			DestZone:   strings.TrimSpace(req.DestZone),
			DestPort:   strings.TrimSpace(req.DestPort),
		}
	case "load":
		cmd = container.Load{UsedSize: req.UsedSize}
	case "board":
		cmd = container.Board{}
	case "depart":
		cmd = container.Depart{}
	case "arrive":
		cmd = container.Arrive{}
	case "offboard":
		cmd = container.OffBoard{}
	case "offload":
		cmd = container.OffLoad{}
	case "release":
		cmd = container.Release{}
	default:
		return CommandResponse{}, ErrUnsupportedAction
	}

	commandID := s.NewCommandID()
	result, err := s.Dispatcher.Execute(ctx, commandID, containerID, cmd)
	if err != nil {
		return CommandResponse{}, err
	}
	return CommandResponse{ContainerID: result.ContainerID, CommandID: commandID, Sequence: result.Sequence}, nil
}
