package temporalx

import (
	"strings"

	"github.com/yungbote/escrow-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string
}

// Enabled reports whether a Temporal frontend is configured. Without one the
// delivery sweeper alone drives auto-completion.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func LoadConfig() Config {
	return Config{
		Address:   strings.TrimSpace(envutil.GetEnv("TEMPORAL_ADDRESS", "", nil)),
		Namespace: strings.TrimSpace(envutil.GetEnv("TEMPORAL_NAMESPACE", "escrow", nil)),
		TaskQueue: strings.TrimSpace(envutil.GetEnv("TEMPORAL_TASK_QUEUE", "escrow-settlement", nil)),

		ClientCertPath: strings.TrimSpace(envutil.GetEnv("TEMPORAL_CLIENT_CERT_PATH", "", nil)),
		ClientKeyPath:  strings.TrimSpace(envutil.GetEnv("TEMPORAL_CLIENT_KEY_PATH", "", nil)),
		ClientCAPath:   strings.TrimSpace(envutil.GetEnv("TEMPORAL_CLIENT_CA_PATH", "", nil)),
	}
}
