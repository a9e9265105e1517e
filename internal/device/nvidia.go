package device

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// GPUInfo describes one accelerator reported by nvidia-smi.
type GPUInfo struct {
	Index       int
	Name        string
	TotalMemory int // MiB
}

// DetectGPUs queries nvidia-smi for the accelerators visible to this process.
// Returns an empty slice when no NVIDIA driver is installed.
func DetectGPUs() ([]GPUInfo, error) {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return nil, nil
	}

	out, err := exec.Command("nvidia-smi", "--query-gpu=index,name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, fmt.Errorf("error querying nvidia-smi: %w", err)
	}
	return parseGPUList(string(out))
}

func parseGPUList(output string) ([]GPUInfo, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	var gpus []GPUInfo
	for _, line := range strings.Split(output, "\n") {
		fields := strings.SplitN(line, ",", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected nvidia-smi output line: %q", line)
		}

		index, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid gpu index in %q: %w", line, err)
		}
		memory, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid gpu memory in %q: %w", line, err)
		}

		gpus = append(gpus, GPUInfo{
			Index:       index,
			Name:        strings.TrimSpace(fields[1]),
			TotalMemory: memory,
		})
	}
	return gpus, nil
}

// WarnIfOversubscribed logs when a run requests more cuda devices than
// nvidia-smi reports. The run still proceeds; the load failure, if any,
// surfaces in the owning worker.
func WarnIfOversubscribed(kind string, requested int) {
	if kind != KindCUDA {
		return
	}

	gpus, err := DetectGPUs()
	if err != nil {
		slog.Warn("could not query available gpus", "error", err)
		return
	}
	if len(gpus) < requested {
		slog.Warn("requested more cuda devices than are visible", "requested", requested, "visible", len(gpus))
	}
}
