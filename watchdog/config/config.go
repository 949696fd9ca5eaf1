package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"

	"github.com/evaafi/oracle-watchdog/watchdog/log"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
	"github.com/evaafi/oracle-watchdog/watchdog/verifier"
)

const (
	KeyOracle          = "ORACLE"
	KeyTriggerTime     = "TRIGGER_TIME"
	KeySleepTime       = "SLEEP_TIME"
	KeySettleTime      = "SETTLE_TIME"
	KeyMaxAttempts     = "MAX_ATTEMPTS"
	KeyBotToken        = "BOT_TOKEN"
	KeyChatID          = "CHAT_ID"
	KeyTopicID         = "TOPIC_ID"
	KeyTelegramAPI     = "TELEGRAM_API"
	KeyCommands        = "COMMANDS"
	KeyPoolConfig      = "POOL_CONFIG"
	KeyICPEndpoint     = "ICP_ENDPOINT"
	KeyBackendEndpoint = "BACKEND_ENDPOINT"
	KeyIOTAEndpoint    = "IOTA_ENDPOINT"
	KeySignScheme      = "SIGN_SCHEME"
	KeyHTTPTimeout     = "HTTP_TIMEOUT"
	KeyShell           = "COMMAND_SHELL"
)

// Config is built once at startup and handed to every component.
type Config struct {
	Home        string
	Oracle      string
	TriggerTime time.Duration
	SleepTime   time.Duration
	SettleTime  time.Duration
	MaxAttempts int
	HTTPTimeout time.Duration
	Shell       string
	PoolFile    string
	Commands    []string
	Telegram    TelegramConfig
	Sources     []SourceConfig

	errs   []error
	failed map[string]bool
}

type TelegramConfig struct {
	APIURL   string
	BotToken string
	ChatID   string
	TopicID  int64
}

// Enabled is false when no bot token is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

type SourceConfig struct {
	Name     string
	Kind     string
	Role     types.Role
	Endpoint string
	Scheme   verifier.Scheme
}

func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oracle-watchdog"
	}

	return filepath.Join(home, ".oracle-watchdog")
}

// NewViper reads the environment and, if present, a dotenv file.
// Process environment takes precedence over the file.
func NewViper(home, envFile string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeySettleTime, 1)
	v.SetDefault(KeyMaxAttempts, 3)
	v.SetDefault(KeyTelegramAPI, "https://api.telegram.org")
	v.SetDefault(KeyPoolConfig, filepath.Join(home, "pool.toml"))
	v.SetDefault(KeyICPEndpoint, "https://6khmc-aiaaa-aaaap-ansfq-cai.raw.icp0.io")
	v.SetDefault(KeyBackendEndpoint, "https://evaa.space")
	v.SetDefault(KeyIOTAEndpoint, "https://api.stardust-mainnet.iotaledger.net")
	v.SetDefault(KeySignScheme, string(verifier.SchemeEd25519))
	v.SetDefault(KeyHTTPTimeout, 30)
	v.SetDefault(KeyShell, "/bin/sh")

	if envFile == "" {
		return v, nil
	}

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			log.Debugf("env file %s not found, using process environment only", envFile)
			return v, nil
		}
		return nil, fmt.Errorf("failed to stat env file %s: %w", envFile, err)
	}

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}

	log.Infof("Loaded env file %s", envFile)

	return v, nil
}

// Load never fails; problems are collected and reported by Validate so
// the caller can still build a notifier from whatever did parse.
func Load(home string, v *viper.Viper) *Config {
	c := &Config{
		Home:     home,
		Oracle:   strings.TrimSpace(v.GetString(KeyOracle)),
		Shell:    v.GetString(KeyShell),
		PoolFile: v.GetString(KeyPoolConfig),
		Telegram: TelegramConfig{
			APIURL:   strings.TrimRight(v.GetString(KeyTelegramAPI), "/"),
			BotToken: v.GetString(KeyBotToken),
			ChatID:   v.GetString(KeyChatID),
		},
	}

	c.TriggerTime = c.seconds(v, KeyTriggerTime, true)
	c.SleepTime = c.seconds(v, KeySleepTime, true)
	c.SettleTime = c.seconds(v, KeySettleTime, false)
	c.HTTPTimeout = c.seconds(v, KeyHTTPTimeout, false)

	if n, err := cast.ToIntE(v.Get(KeyMaxAttempts)); err != nil {
		c.fail(KeyMaxAttempts, errorsmod.Wrapf(ErrInvalidSetting, "%s: %v", KeyMaxAttempts, err))
	} else {
		c.MaxAttempts = n
	}

	if raw := v.GetString(KeyTopicID); raw != "" {
		topic, err := cast.ToInt64E(raw)
		if err != nil {
			c.fail(KeyTopicID, errorsmod.Wrapf(ErrInvalidSetting, "%s: %v", KeyTopicID, err))
		}
		c.Telegram.TopicID = topic
	}

	commands, err := ParseCommands(v.GetString(KeyCommands))
	if err != nil {
		c.fail(KeyCommands, err)
	}
	c.Commands = commands

	scheme, err := verifier.ParseScheme(v.GetString(KeySignScheme))
	if err != nil {
		c.fail(KeySignScheme, errorsmod.Wrapf(ErrInvalidSetting, "%s: %v", KeySignScheme, err))
	}

	c.Sources = []SourceConfig{
		{Name: "icp", Kind: "icp", Role: types.RolePair, Endpoint: v.GetString(KeyICPEndpoint), Scheme: scheme},
		{Name: "backend", Kind: "backend", Role: types.RolePair, Endpoint: v.GetString(KeyBackendEndpoint), Scheme: scheme},
		{Name: "iota", Kind: "iota", Role: types.RoleAnchor, Endpoint: v.GetString(KeyIOTAEndpoint), Scheme: scheme},
	}

	return c
}

func (c *Config) fail(key string, err error) {
	if c.failed == nil {
		c.failed = make(map[string]bool)
	}
	c.failed[key] = true
	c.errs = append(c.errs, err)
}

func (c *Config) seconds(v *viper.Viper, key string, required bool) time.Duration {
	if !v.IsSet(key) || v.GetString(key) == "" {
		if required {
			c.fail(key, errorsmod.Wrapf(ErrInvalidSetting, "%s is required", key))
		}
		return 0
	}

	f, err := cast.ToFloat64E(v.Get(key))
	if err != nil {
		c.fail(key, errorsmod.Wrapf(ErrInvalidSetting, "%s: %v", key, err))
		return 0
	}

	return time.Duration(f * float64(time.Second))
}

// ParseCommands expects a JSON array of shell strings.
func ParseCommands(raw string) ([]string, error) {
	if !gjson.Valid(raw) {
		return nil, errorsmod.Wrapf(ErrInvalidCommands, "%s is not valid JSON", KeyCommands)
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, errorsmod.Wrapf(ErrInvalidCommands, "%s must be a JSON array", KeyCommands)
	}

	commands := make([]string, 0)
	for i, elem := range parsed.Array() {
		if elem.Type != gjson.String || strings.TrimSpace(elem.Str) == "" {
			return nil, errorsmod.Wrapf(ErrInvalidCommands, "command %d must be a non-empty string", i)
		}
		commands = append(commands, elem.Str)
	}

	return commands, nil
}

// Validate returns every fatal configuration problem. Oracle and command
// errors are listed first.
func (c *Config) Validate() error {
	var errs []error

	if c.Oracle == "" {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidOracle, "%s is required", KeyOracle))
	}

	for _, err := range c.errs {
		if errors.Is(err, ErrInvalidCommands) {
			errs = append(errs, err)
		}
	}
	for _, err := range c.errs {
		if !errors.Is(err, ErrInvalidCommands) {
			errs = append(errs, err)
		}
	}

	if c.TriggerTime <= 0 && !c.failed[KeyTriggerTime] {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "%s must be positive", KeyTriggerTime))
	}
	if c.SleepTime < 0 {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "%s must not be negative", KeySleepTime))
	}
	if c.SettleTime < 0 {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "%s must not be negative", KeySettleTime))
	}
	if c.MaxAttempts < 1 && !c.failed[KeyMaxAttempts] {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "%s must be at least 1", KeyMaxAttempts))
	}
	if c.Telegram.Enabled() && c.Telegram.ChatID == "" {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "%s is required with %s", KeyChatID, KeyBotToken))
	}
	if c.PoolFile == "" {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "%s is required", KeyPoolConfig))
	}

	var anchors, pairs int
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.Name] {
			errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "duplicate source %s", s.Name))
		}
		seen[s.Name] = true
		if s.Endpoint == "" {
			errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "source %s has no endpoint", s.Name))
		}
		switch s.Role {
		case types.RoleAnchor:
			anchors++
		case types.RolePair:
			pairs++
		}
	}
	if anchors == 0 || pairs == 0 {
		errs = append(errs, errorsmod.Wrapf(ErrInvalidSetting, "need at least one anchor and one pair source, got %d and %d", anchors, pairs))
	}

	return errors.Join(errs...)
}

func (c *Config) Print() {
	log.Infof("%-15s: %s", "Home", c.Home)
	log.Infof("%-15s: %s", "Oracle", c.Oracle)
	log.Infof("%-15s: %v", "Trigger Time", c.TriggerTime)
	log.Infof("%-15s: %v", "Sleep Time", c.SleepTime)
	log.Infof("%-15s: %v", "Settle Time", c.SettleTime)
	log.Infof("%-15s: %d", "Max Attempts", c.MaxAttempts)
	log.Infof("%-15s: %s", "Pool Config", c.PoolFile)
	log.Infof("%-15s: %t", "Telegram", c.Telegram.Enabled())
	log.Infof("%-15s: %d", "Commands", len(c.Commands))
	for _, s := range c.Sources {
		log.Infof("%-15s: %s %s (%s, %s)", "Source", s.Name, s.Endpoint, s.Role, s.Scheme)
	}
}
