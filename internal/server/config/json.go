package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sealpost/internal/flagx"
)

// JsonConfig is the on-disk shape of Config.
type JsonConfig struct {
	ServerID         string `json:"server_id"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	ProgramID        string `json:"program_id"`
	PolicyObjectID   string `json:"policy_object_id"`
	DatabaseDriver   string `json:"database_driver"`
	DatabaseDSN      string `json:"database_dsn"`
	KeyFile          string `json:"key_file"`
	LogLevel         string `json:"log_level"`
	LogFormat        string `json:"log_format"`
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays config with the JSON file named by -c or -config.
// Fields absent from the file keep their current values. An unreadable or
// invalid file panics.
func parseJson(config *Config) {
	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	set(&config.ServerID, c.ServerID)
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.ProgramID, c.ProgramID)
	set(&config.PolicyObjectID, c.PolicyObjectID)
	set(&config.DatabaseDriver, c.DatabaseDriver)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.KeyFile, c.KeyFile)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)
}
