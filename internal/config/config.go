// Package config loads the environment-variable driven configuration
// surface, applying the same defaults a fresh checkout would need to run
// against.
package config

import (
	"os"
	"strconv"
)

// Config holds every environment-derived setting used by the server and
// sync CLI.
type Config struct {
	Debug bool

	Port          int
	DBPath        string
	AdminToken    string
	UserDictPath  string

	WecomCookies   string
	TaobaoCookie   string
	PDDCookie      string
	PDDJSONPath    string
	SpecFusionAPIURL string
}

// Load reads every recognized environment variable and applies defaults
// via ApplyDefaults.
func Load() *Config {
	cfg := &Config{
		Debug:            getBool("SPECFUSION_DEBUG", false),
		Port:             getInt("PORT", 3456),
		DBPath:           getString("DB_PATH", "./data/specfusion.db"),
		AdminToken:       getString("ADMIN_TOKEN", "dev-token"),
		UserDictPath:     getString("USERDICT_PATH", ""),
		WecomCookies:     getString("WECOM_COOKIES", ""),
		TaobaoCookie:     getString("TAOBAO_COOKIE", ""),
		PDDCookie:        getString("PDD_COOKIE", ""),
		PDDJSONPath:      getString("PDD_JSON_PATH", ""),
		SpecFusionAPIURL: getString("SPECFUSION_API_URL", "http://localhost:3456"),
	}
	ApplyDefaults(cfg)
	return cfg
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
