package config

import "runtime"

// IPCConfig configures the status channel listener.
type IPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// DefaultIPCName is the well-known status channel address for this platform.
// POSIX systems use a filesystem socket in /tmp so separate processes can find it;
// elsewhere the name is used as-is.
func DefaultIPCName() string {
	if runtime.GOOS == "windows" {
		return "pagi_shmem_pipe"
	}
	return "/tmp/pagi_shmem_pipe"
}

// DefaultIPCConfig returns the default IPC settings.
func DefaultIPCConfig() IPCConfig {
	return IPCConfig{
		Enabled: true,
		Name:    DefaultIPCName(),
	}
}
