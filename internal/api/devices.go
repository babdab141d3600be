package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pcileds/internal/npem"
)

// HealthData is the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Devices int    `json:"devices" example:"2" doc:"Number of managed devices"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData is the version payload.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0"`
	GitCommit string `json:"git_commit" example:"abc1234"`
	BuildDate string `json:"build_date" example:"2026-08-01T00:00:00Z"`
	GoVersion string `json:"go_version" example:"go1.24.11"`
	Platform  string `json:"platform" example:"linux/amd64"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// IndicationState is one indication of one device.
type IndicationState struct {
	Name   string `json:"name" example:"locate" doc:"Indication name"`
	Bit    uint32 `json:"bit" example:"8" doc:"Bit value in the state word"`
	Active bool   `json:"active" example:"false" doc:"Whether the indication is asserted"`
}

// DeviceSummary describes one managed device.
type DeviceSummary struct {
	Address   string   `json:"address" example:"0000:03:00.0" doc:"PCI address"`
	Backend   string   `json:"backend" example:"register" doc:"Selected backend, register or firmware"`
	Supported []string `json:"supported" doc:"Supported indication names"`
}

// DeviceListResponse wraps the device list.
type DeviceListResponse struct {
	Body struct {
		Devices []DeviceSummary `json:"devices"`
	}
}

// DeviceDetail is the full state of one device.
type DeviceDetail struct {
	Address       string            `json:"address" example:"0000:03:00.0"`
	Backend       string            `json:"backend" example:"register"`
	SupportedMask uint32            `json:"supported_mask" example:"60" doc:"Raw supported-indication bit mask"`
	ActiveMask    uint32            `json:"active_mask" example:"8" doc:"Raw active-indication bit mask"`
	Indications   []IndicationState `json:"indications"`
}

// DeviceDetailResponse wraps DeviceDetail.
type DeviceDetailResponse struct {
	Body DeviceDetail
}

// SetIndicationInput is the request to change one indication.
type SetIndicationInput struct {
	Address string `path:"address" example:"0000:03:00.0" doc:"PCI address"`
	Name    string `path:"name" example:"locate" doc:"Indication name"`
	Body    struct {
		Active bool `json:"active" example:"true" doc:"Assert or deassert the indication"`
	}
}

// SetIndicationResponse returns the indication's state after the write.
type SetIndicationResponse struct {
	Body IndicationState
}

// IndicatorListResponse lists registered indicator names.
type IndicatorListResponse struct {
	Body struct {
		Indicators []string `json:"indicators" doc:"Registered indicator names"`
	}
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List devices",
		Description: "List managed devices with their backend and supported indications",
		Tags:        []string{"devices"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*DeviceListResponse, error) {
		resp := &DeviceListResponse{}
		resp.Body.Devices = make([]DeviceSummary, 0)
		for _, engine := range s.manager.Engines() {
			resp.Body.Devices = append(resp.Body.Devices, summarize(engine))
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/devices/{address}",
		Summary:     "Get device",
		Description: "Get a device's full indication state",
		Tags:        []string{"devices"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Address string `path:"address" example:"0000:03:00.0" doc:"PCI address"`
	}) (*DeviceDetailResponse, error) {
		engine, ok := s.manager.Engine(input.Address)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("no managed device at %s", input.Address))
		}

		active, err := engine.Active(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("read indication state", err)
		}

		detail := DeviceDetail{
			Address:       engine.Addr().String(),
			Backend:       engine.Backend(),
			SupportedMask: engine.SupportedMask(),
			ActiveMask:    active,
		}
		for _, ind := range engine.Supported() {
			detail.Indications = append(detail.Indications, IndicationState{
				Name:   ind.Name,
				Bit:    ind.Bit,
				Active: active&ind.Bit != 0,
			})
		}
		return &DeviceDetailResponse{Body: detail}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-indication",
		Method:      http.MethodPut,
		Path:        "/api/devices/{address}/indications/{name}",
		Summary:     "Set indication",
		Description: "Assert or deassert one indication. Indications the device does not support are rejected.",
		Tags:        []string{"devices"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *SetIndicationInput) (*SetIndicationResponse, error) {
		engine, ok := s.manager.Engine(input.Address)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("no managed device at %s", input.Address))
		}

		ind, ok := findIndication(engine, input.Name)
		if !ok {
			return nil, huma.Error400BadRequest(
				fmt.Sprintf("device %s does not support indication %q", input.Address, input.Name))
		}

		if err := engine.Write(ctx, ind.Bit, input.Body.Active); err != nil {
			return nil, huma.Error500InternalServerError("write indication", err)
		}

		active, err := engine.Read(ctx, ind.Bit)
		if err != nil {
			return nil, huma.Error500InternalServerError("read indication state", err)
		}
		return &SetIndicationResponse{Body: IndicationState{
			Name:   ind.Name,
			Bit:    ind.Bit,
			Active: active,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-indicators",
		Method:      http.MethodGet,
		Path:        "/api/indicators",
		Summary:     "List indicators",
		Description: "List all registered indicator names",
		Tags:        []string{"devices"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*IndicatorListResponse, error) {
		resp := &IndicatorListResponse{}
		resp.Body.Indicators = s.registry.Names()
		return resp, nil
	})
}

func summarize(engine *npem.Engine) DeviceSummary {
	supported := engine.Supported()
	names := make([]string, len(supported))
	for i, ind := range supported {
		names[i] = ind.Name
	}
	return DeviceSummary{
		Address:   engine.Addr().String(),
		Backend:   engine.Backend(),
		Supported: names,
	}
}

func findIndication(engine *npem.Engine, name string) (npem.Indication, bool) {
	for _, ind := range engine.Supported() {
		if ind.Name == name {
			return ind, true
		}
	}
	return npem.Indication{}, false
}
