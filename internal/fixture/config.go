package fixture

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile is looked up in the project root when no path is given.
const ConfigFile = "sapi.yaml"

type StaticRule struct {
	Prefix string `yaml:"prefix"`
	Dir    string `yaml:"dir"`
}

// Route describes one canned response. Exactly one of Body, Chunks or Echo
// drives the body; Chunks wins over Body, Echo wins over both.
type Route struct {
	Path       string              `yaml:"path"`
	Methods    []string            `yaml:"methods"`
	Status     int                 `yaml:"status"`
	Headers    map[string][]string `yaml:"headers"`
	Body       string              `yaml:"body"`
	Chunks     []string            `yaml:"chunks"`
	IntervalMs int                 `yaml:"interval_ms"`
	Echo       bool                `yaml:"echo"`
}

type Config struct {
	// Software is reported as SERVER_SOFTWARE by the development server.
	Software       string       `yaml:"software"`
	DefaultCharset string       `yaml:"default_charset"`
	Static         []StaticRule `yaml:"static"`
	Routes         []Route      `yaml:"routes"`
}

// DefaultConfig returns the settings used when sapi.yaml is missing or
// invalid.
func DefaultConfig() *Config {
	return &Config{
		Software:       "sapi-dev",
		DefaultCharset: "UTF-8",
		Static: []StaticRule{
			{Prefix: "/assets/", Dir: "public/assets"},
		},
		Routes: []Route{
			{
				Path:    "/",
				Methods: []string{http.MethodGet, http.MethodHead},
				Status:  http.StatusOK,
				Headers: map[string][]string{"Content-Type": {"text/plain"}},
				Body:    "sapi is running\n",
			},
			{Path: "/echo", Echo: true},
			{
				Path:       "/stream",
				Headers:    map[string][]string{"Content-Type": {"text/plain"}},
				Chunks:     []string{"a", "bc", "d"},
				IntervalMs: 100,
			},
		},
	}
}

// Load reads the config at path, falling back to defaults on any error and
// repairing invalid values with a logged note.
func Load(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config found at %s, using defaults: %v", path, err)
		return DefaultConfig()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Printf("[config] invalid config (%s), using defaults: %v", path, err)
		return DefaultConfig()
	}

	def := DefaultConfig()

	if cfg.Software == "" {
		cfg.Software = def.Software
	}
	if cfg.DefaultCharset == "" {
		cfg.DefaultCharset = def.DefaultCharset
	}

	for i, rule := range cfg.Static {
		if !strings.HasPrefix(rule.Prefix, "/") {
			log.Printf("[config] static[%d].prefix=%q does not start with '/', fixing", i, rule.Prefix)
			cfg.Static[i].Prefix = "/" + rule.Prefix
		}
		if rule.Dir == "" {
			log.Printf("[config] static[%d].dir is empty, this rule will be ignored at runtime", i)
		}
	}

	if len(cfg.Routes) == 0 {
		log.Printf("[config] no routes configured, using default routes")
		cfg.Routes = def.Routes
	}
	for i := range cfg.Routes {
		rt := &cfg.Routes[i]
		if !strings.HasPrefix(rt.Path, "/") {
			log.Printf("[config] routes[%d].path=%q does not start with '/', fixing", i, rt.Path)
			rt.Path = "/" + rt.Path
		}
		if rt.Status == 0 {
			rt.Status = http.StatusOK
		} else if rt.Status < 100 || rt.Status > 999 {
			log.Printf("[config] routes[%d].status=%d is invalid, falling back to %d", i, rt.Status, http.StatusOK)
			rt.Status = http.StatusOK
		}
		if rt.IntervalMs < 0 {
			log.Printf("[config] routes[%d].interval_ms=%d is invalid, falling back to 0", i, rt.IntervalMs)
			rt.IntervalMs = 0
		}
		for j, m := range rt.Methods {
			rt.Methods[j] = strings.ToUpper(m)
		}
	}

	return &cfg
}

// ProjectRoot returns the nearest directory at or above the working
// directory that contains go.mod, or the working directory itself.
func ProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd
		}
		dir = parent
	}
}
