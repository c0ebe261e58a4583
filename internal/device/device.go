// Package device selects the compute device encoders run on. The choice is
// made once and threaded explicitly through each encoder instance.
package device

import "os"

// Device identifies a compute device for model placement.
type Device string

const (
	CPU  Device = "cpu"
	CUDA Device = "cuda"
)

// String returns the device identifier.
func (d Device) String() string { return string(d) }

// Select resolves a configured device preference to a concrete device.
// "auto" picks CUDA when a GPU is visible to the process, otherwise CPU.
func Select(preference string) Device {
	switch preference {
	case "cpu":
		return CPU
	case "cuda":
		return CUDA
	default:
		if cudaVisible() {
			return CUDA
		}
		return CPU
	}
}

// cudaVisible reports whether the process has at least one visible CUDA device.
func cudaVisible() bool {
	v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES")
	if !ok {
		return false
	}
	return v != "" && v != "-1"
}
