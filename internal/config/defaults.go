package config

// ApplyDefaults fills in any zero-value fields cfg.Load's env lookups left
// at their Go zero value but which still need a concrete default.
func ApplyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 3456
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./data/specfusion.db"
	}
	if cfg.AdminToken == "" {
		cfg.AdminToken = "dev-token"
	}
	if cfg.SpecFusionAPIURL == "" {
		cfg.SpecFusionAPIURL = "http://localhost:3456"
	}
}
