//go:build amd && !nvidia

package gpu

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/amd"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// NewBridge selects the vendor adapter at build time. This binary was
// built with the amd tag and talks to ROCm SMI.
func NewBridge(log *zap.Logger, libraryPath string) gpuapi.Bridge {
	log.Info("using AMD ROCm SMI bridge")
	return amd.NewBridge(log, libraryPath)
}
