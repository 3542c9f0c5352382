package accel

import (
	"context"
	"fmt"
)

type Device struct {
	Index       int    `json:"index" mapstructure:"index"`
	Name        string `json:"name" mapstructure:"name"`
	MemoryBytes uint64 `json:"memory_bytes" mapstructure:"memory_bytes"`
}

// MemoryGB is total memory in decimal gigabytes.
func (d Device) MemoryGB() float64 {
	return float64(d.MemoryBytes) / 1e9
}

// MemoryLabel formats total memory the way /health reports it, e.g. "79.6GB".
func (d Device) MemoryLabel() string {
	return fmt.Sprintf("%.1fGB", d.MemoryGB())
}

type Inventory interface {
	Devices(context.Context) ([]Device, error)
}

type None struct{}

func (None) Devices(context.Context) ([]Device, error) {
	return nil, nil
}

type Static []Device

func (s Static) Devices(context.Context) ([]Device, error) {
	return s, nil
}
