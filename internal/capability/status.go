package capability

import (
	"context"

	"github.com/dmorgan81/genserve/internal/accel"
	"github.com/dmorgan81/genserve/internal/gate"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/lo"
)

type GPUInfo struct {
	Count     int      `json:"gpu_count"`
	Available bool     `json:"gpu_available"`
	Memory    []string `json:"gpu_memory"`
}

type Status struct {
	Status      string      `json:"status"`
	ModelLoaded bool        `json:"model_loaded"`
	ModelName   string      `json:"model_name"`
	GPUInfo     GPUInfo     `json:"gpu_info"`
	Admission   *gate.Stats `json:"admission,omitempty"`
	LoadError   string      `json:"load_error,omitempty"`
}

// Reporter answers readiness queries. It never touches the generation path.
type Reporter struct {
	Handle    *Handle
	Inventory accel.Inventory
	Gate      *gate.Gate
}

func (r *Reporter) Status(ctx context.Context) Status {
	status := Status{
		Status:      "healthy",
		ModelLoaded: r.Handle.Ready(),
		ModelName:   r.Handle.Name(),
		GPUInfo:     GPUInfo{Memory: []string{}},
	}
	if err := r.Handle.Err(); err != nil {
		status.LoadError = err.Error()
	}
	if r.Gate != nil {
		stats := r.Gate.Stats()
		status.Admission = &stats
	}

	if r.Inventory == nil {
		return status
	}
	devices, err := r.Inventory.Devices(ctx)
	if err != nil {
		log.FromContextOrDiscard(ctx).Warn("accelerator inventory unavailable", "error", err)
		return status
	}
	status.GPUInfo = GPUInfo{
		Count:     len(devices),
		Available: len(devices) > 0,
		Memory:    lo.Map(devices, func(d accel.Device, _ int) string { return d.MemoryLabel() }),
	}
	return status
}
