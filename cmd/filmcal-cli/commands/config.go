package commands

import (
	"errors"
	"os"

	"filmcalendar-backend/lib/configutil"
	configlibsql "filmcalendar-backend/lib/configutil/libsql"
	"filmcalendar-backend/lib/serviceutil"
)

type Config struct {
	TmdbApiKey string              `json:"tmdb_api_key"`
	PageCache  string              `json:"page_cache"`
	Upload     configlibsql.Struct `json:"upload"`
}

// most commands run fine without a config file, so a missing one yields
// the zero config instead of an error.
func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if errors.Is(err, os.ErrNotExist) {
		return Config{}
	}
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}
