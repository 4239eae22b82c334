package telemetry

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
)

// StartProfiling pushes continuous CPU and heap profiles to a Pyroscope server.
// It returns a stop func; an empty address disables profiling.
func StartProfiling(appName, serverAddress string, tags map[string]string) (func() error, error) {
	if serverAddress == "" {
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddress,
		Tags:            tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: pyroscope: %w", err)
	}
	return profiler.Stop, nil
}
