package accel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Upstream reads the inventory a GPU worker publishes under gpu_info on its
// /health route.
type Upstream struct {
	Client   *http.Client
	Endpoint string
}

func (u Upstream) Devices(ctx context.Context) ([]Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(u.Endpoint, "/")+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream health returned %d", resp.StatusCode)
	}
	return parseGPUInfo(gjson.GetBytes(data, "gpu_info"))
}

func parseGPUInfo(info gjson.Result) ([]Device, error) {
	var devices []Device
	for i, label := range info.Get("gpu_memory").Array() {
		gb, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(label.String()), "GB"), 64)
		if err != nil {
			return nil, fmt.Errorf("upstream gpu_memory[%d]: %w", i, err)
		}
		devices = append(devices, Device{Index: i, Name: fmt.Sprintf("cuda:%d", i), MemoryBytes: uint64(gb * 1e9)})
	}
	return devices, nil
}
