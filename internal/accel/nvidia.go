package accel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/lo"
)

// NvidiaSMI queries the local driver through the nvidia-smi binary.
type NvidiaSMI struct {
	Path string
}

func (n NvidiaSMI) Devices(ctx context.Context) ([]Device, error) {
	path := lo.Ternary(n.Path != "", n.Path, "nvidia-smi")
	log.FromContextOrDiscard(ctx).Debug("querying accelerators", "binary", path)

	out, err := exec.CommandContext(ctx, path,
		"--query-gpu=index,name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseNvidiaSMI(out)
}

// parseNvidiaSMI reads "index, name, MiB" rows.
func parseNvidiaSMI(out []byte) ([]Device, error) {
	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := lo.Map(strings.Split(line, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		})
		if len(fields) != 3 {
			return nil, fmt.Errorf("nvidia-smi: unexpected row %q", line)
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("nvidia-smi: bad index in %q: %w", line, err)
		}
		mib, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("nvidia-smi: bad memory in %q: %w", line, err)
		}
		devices = append(devices, Device{Index: index, Name: fields[1], MemoryBytes: mib << 20})
	}
	return devices, scanner.Err()
}
