package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/holdwatch/internal/notify"
	"github.com/mesh-intelligence/holdwatch/internal/paths"
	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "HOLDWATCH"
)

// Config keys. Nested keys map to env variables with "." replaced by "_",
// e.g. notify.api_key is HOLDWATCH_NOTIFY_API_KEY.
const (
	cfgKeyBackend           = "backend"
	cfgKeyDataDir           = "data_dir"
	cfgKeyFamilyID          = "family_id"
	cfgKeyPreferredBranch   = "preferred_branch"
	cfgKeyRejectRegressions = "reject_regressions"
	cfgKeyHoldsFile         = "holds_file"
	cfgKeyMirror            = "mirror"
	cfgKeyInboxDir          = "inbox_dir"
	cfgKeyLogLevel          = "log_level"
	cfgKeyLogFormat         = "log_format"
	cfgKeyPhoneNumber       = "notify.phone_number"
	cfgKeyNotifyURL         = "notify.url"
	cfgKeyNotifyAPIKey      = "notify.api_key"
	cfgKeyNotifyAgentID     = "notify.agent_id"
	cfgKeyNotifyVersion     = "notify.version"
	cfgKeyNotifyTimeout     = "notify.timeout"
)

// configFile is the structure written to config.yaml on first run.
// Secrets are left out; they come from the environment.
type configFile struct {
	Backend           string        `yaml:"backend"`
	FamilyID          string        `yaml:"family_id"`
	PreferredBranch   string        `yaml:"preferred_branch"`
	RejectRegressions bool          `yaml:"reject_regressions"`
	Mirror            bool          `yaml:"mirror"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	Notify            notifySection `yaml:"notify"`
}

type notifySection struct {
	PhoneNumber string `yaml:"phone_number"`
	URL         string `yaml:"url"`
	Version     string `yaml:"version"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend:  types.BackendSQLite,
		FamilyID: types.DefaultFamilyID,
		Mirror:   true,
		LogLevel: "info",
		Notify: notifySection{
			URL:     notify.DefaultURL,
			Version: notify.DefaultVersion,
		},
	}
}

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. HOLDWATCH_* environment
// variables override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if _, err := writeConfigIfMissing(filepath.Join(configDir, paths.ConfigFile)); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	d := defaultConfigFile()
	v.SetDefault(cfgKeyBackend, d.Backend)
	v.SetDefault(cfgKeyFamilyID, d.FamilyID)
	v.SetDefault(cfgKeyMirror, d.Mirror)
	v.SetDefault(cfgKeyLogLevel, d.LogLevel)
	v.SetDefault(cfgKeyNotifyURL, d.Notify.URL)
	v.SetDefault(cfgKeyNotifyVersion, d.Notify.Version)
	v.SetDefault(cfgKeyNotifyTimeout, 30*time.Second)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys Viper already knows about.
	for _, k := range []string{cfgKeyDataDir, cfgKeyPreferredBranch, cfgKeyRejectRegressions,
		cfgKeyHoldsFile, cfgKeyInboxDir, cfgKeyLogFormat, cfgKeyPhoneNumber,
		cfgKeyNotifyAPIKey, cfgKeyNotifyAgentID} {
		_ = v.BindEnv(k)
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. It reports whether a file was written.
func writeConfigIfMissing(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultConfigFile()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# holdwatch configuration\n# Secrets: set HOLDWATCH_NOTIFY_API_KEY and HOLDWATCH_NOTIFY_AGENT_ID.\n"
	return true, os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// storeConfig builds the store and reconciler settings from flags and config.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	family := a.flags.family
	if family == "" {
		family = a.v.GetString(cfgKeyFamilyID)
	}
	cfg := types.Config{
		Backend:           a.v.GetString(cfgKeyBackend),
		DataDir:           dataDir,
		FamilyID:          family,
		PreferredBranch:   a.v.GetString(cfgKeyPreferredBranch),
		RejectRegressions: a.v.GetBool(cfgKeyRejectRegressions),
	}
	return cfg, cfg.Validate()
}

// holdsFile returns the path of the holds mirror.
func (a *app) holdsFile(dataDir string) (string, error) {
	return paths.ResolveHoldsFile(a.v.GetString(cfgKeyHoldsFile), dataDir)
}

// notifierConfig returns the outbound-call settings.
func (a *app) notifierConfig() notify.HTTPConfig {
	return notify.HTTPConfig{
		URL:     a.v.GetString(cfgKeyNotifyURL),
		APIKey:  a.v.GetString(cfgKeyNotifyAPIKey),
		AgentID: a.v.GetString(cfgKeyNotifyAgentID),
		Version: a.v.GetString(cfgKeyNotifyVersion),
		Timeout: a.v.GetDuration(cfgKeyNotifyTimeout),
	}
}
