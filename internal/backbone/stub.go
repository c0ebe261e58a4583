//go:build !onnx
// +build !onnx

package backbone

import (
	"context"
	"fmt"

	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

// NewNative is unavailable without the 'onnx' build tag. The default build
// avoids the CGO dependency on the onnxruntime shared library.
func NewNative(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, dev device.Device) (Backbone, error) {
	return nil, fmt.Errorf("binary built without onnx support; rebuild with -tags onnx")
}
