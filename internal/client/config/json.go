package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dvoronkov/echofeed/internal/flagx"
	"github.com/dvoronkov/echofeed/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "10s" or as integer nanoseconds.
type JsonConfig struct {
	APIBaseURL     string         `json:"api_base_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	LocalStoreDSN  string         `json:"local_store_dsn"`
	PageSize       int            `json:"page_size"`
}

// parseJson overlays Config with values loaded from a JSON file whose path
// comes from the -c/-config flags. Absent flags mean no JSON is loaded.
// Read or unmarshal errors panic; intended usage is
// defaults -> parseJson -> parseFlags, where later stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.LocalStoreDSN != "" {
		cfg.LocalStoreDSN = jc.LocalStoreDSN
	}
	if jc.PageSize != 0 {
		cfg.PageSize = jc.PageSize
	}
}
