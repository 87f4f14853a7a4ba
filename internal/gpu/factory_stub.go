//go:build !nvidia && !amd

package gpu

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// NewBridge selects the vendor adapter at build time. Without a vendor
// tag the stub stands in; the library path is accepted and ignored.
func NewBridge(log *zap.Logger, libraryPath string) gpuapi.Bridge {
	log.Info("using stub bridge (compiled without GPU support)")
	return NewStubBridge(log)
}
