//go:build nvidia && !amd

package gpu

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/nvidia"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// NewBridge selects the vendor adapter at build time. This binary was
// built with the nvidia tag and talks to NVML.
func NewBridge(log *zap.Logger, libraryPath string) gpuapi.Bridge {
	log.Info("using NVIDIA NVML bridge")
	return nvidia.NewBridge(log, libraryPath)
}
