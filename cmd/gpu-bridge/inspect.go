package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/config"
	"github.com/fxnlabs/gpu-bridge/internal/gpu"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// withBridge opens a session for the duration of one command.
func withBridge(log *zap.Logger, cfg *config.Config, fn func(bridge gpuapi.Bridge) error) error {
	bridge := gpu.NewBridge(log, cfg.Bridge.LibraryPath)
	if err := bridge.Open(); err != nil {
		return fmt.Errorf("open bridge: %w", err)
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			log.Warn("failed to close bridge", zap.Error(err))
		}
	}()
	return fn(bridge)
}

func devicesCommand(log **zap.Logger, cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List every GPU with its static attributes",
		Action: func(c *cli.Context) error {
			return withBridge(*log, *cfg, func(bridge gpuapi.Bridge) error {
				count, err := bridge.DeviceCount()
				if err != nil {
					return err
				}
				fmt.Printf("%d device(s)\n", count)
				for i := uint32(0); i < count; i++ {
					info, err := bridge.DeviceCardInfo(i)
					if err != nil {
						return fmt.Errorf("device %d: %w", i, err)
					}
					fmt.Printf("\nDevice %d\n", i)
					fmt.Printf("  Bus address:   %s\n", info.BusAddrString())
					fmt.Printf("  Model:         %s\n", info.ModelString())
					fmt.Printf("  Architecture:  %s\n", info.ArchitectureString())
					fmt.Printf("  Driver:        %s\n", info.DriverString())
					fmt.Printf("  Firmware:      %s\n", info.FirmwareString())
					fmt.Printf("  UUID:          %s\n", info.UUIDString())
					fmt.Printf("  Total memory:  %d MiB\n", info.TotalMem>>20)
					fmt.Printf("  Power limit:   %d mW (range %d-%d)\n", info.PowerLimit, info.MinPowerLimit, info.MaxPowerLimit)
					fmt.Printf("  Max clocks:    %d MHz graphics / %d MHz memory\n", info.MaxCEClock, info.MaxMemClock)
				}
				return nil
			})
		},
	}
}

func stateCommand(log **zap.Logger, cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Show the current dynamic state of one GPU",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    "device",
				Aliases: []string{"d"},
				Usage:   "Device index",
				Value:   0,
			},
		},
		Action: func(c *cli.Context) error {
			index := uint32(c.Uint("device"))
			return withBridge(*log, *cfg, func(bridge gpuapi.Bridge) error {
				state, err := bridge.DeviceCardState(index)
				if err != nil {
					return fmt.Errorf("device %d: %w", index, err)
				}
				fmt.Printf("Device %d\n", index)
				fmt.Printf("  Fan speed:     %d%%\n", state.FanSpeed)
				fmt.Printf("  Compute mode:  %s\n", state.ComputeModeString())
				fmt.Printf("  Perf state:    %s\n", state.PerfStateString())
				fmt.Printf("  Memory:        %d MiB used, %d MiB reserved\n", state.MemUsed>>20, state.MemReserved>>20)
				fmt.Printf("  Utilization:   %.0f%% gpu / %.0f%% memory\n", state.GpuUtil, state.MemUtil)
				fmt.Printf("  Temperature:   %d C\n", state.Temp)
				fmt.Printf("  Power:         %d mW of %d mW\n", state.Power, state.PowerLimit)
				fmt.Printf("  Clocks:        %d MHz graphics / %d MHz memory\n", state.CEClock, state.MemClock)
				return nil
			})
		},
	}
}

func processesCommand(log **zap.Logger, cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "processes",
		Usage: "List the compute processes using one GPU",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    "device",
				Aliases: []string{"d"},
				Usage:   "Device index",
				Value:   0,
			},
		},
		Action: func(c *cli.Context) error {
			index := uint32(c.Uint("device"))
			return withBridge(*log, *cfg, func(bridge gpuapi.Bridge) error {
				count, err := bridge.ProbeProcesses(index)
				if err != nil {
					return fmt.Errorf("device %d: %w", index, err)
				}
				defer bridge.FreeProcesses()

				if count == 0 {
					fmt.Printf("Device %d: no compute processes\n", index)
					return nil
				}
				fmt.Printf("%-10s %-12s %-10s %-10s\n", "PID", "MEM (KiB)", "GPU %", "MEM %")
				for row := uint32(0); row < count; row++ {
					proc, err := bridge.GetProcess(row)
					if err != nil {
						return fmt.Errorf("row %d: %w", row, err)
					}
					fmt.Printf("%-10d %-12d %-10d %-10d\n", proc.Pid, proc.MemSize, proc.GpuUtil, proc.MemUtil)
				}
				return nil
			})
		},
	}
}
