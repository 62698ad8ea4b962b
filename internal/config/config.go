// Package config loads tokkit's environment-variable configuration,
// optionally pre-loaded from a .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds every environment variable tokkit recognizes. Fields are
// empty/zero when the corresponding variable was not set; callers
// decide which are mandatory for the features they use.
type Config struct {
	AuthorizationServerURL   string
	AuthorizationServerRealm string

	CredentialsDir                   string
	CredentialsClientFilename        string
	CredentialsResourceOwnerFilename string

	ManagedTokenScopes string
	ManagedTokenID     string

	TokenIntrospectionEndpoint         string
	TokenIntrospectionQueryParameter   string
	TokenIntrospectionFallbackEndpoint string

	TokenInfoParserUserIDField  string
	TokenInfoParserScopeField   string
	TokenInfoParserExpiresField string

	LogLevel       string
	LogFile        string
	RedisAddr      string
	ManagementAddr string
}

// Load reads a .env file if present (missing files are not an error,
// matching godotenv's own convention) and then populates Config from
// the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("config: could not load .env file")
	}

	c := &Config{
		AuthorizationServerURL:   os.Getenv("TOKKIT_AUTHORIZATION_SERVER_URL"),
		AuthorizationServerRealm: os.Getenv("TOKKIT_AUTHORIZATION_SERVER_REALM"),

		CredentialsDir:                   firstNonEmpty(os.Getenv("TOKKIT_CREDENTIALS_DIR"), os.Getenv("CREDENTIALS_DIR")),
		CredentialsClientFilename:        defaultString(os.Getenv("TOKKIT_CREDENTIALS_CLIENT_FILENAME"), "client.json"),
		CredentialsResourceOwnerFilename: defaultString(os.Getenv("TOKKIT_CREDENTIALS_RESOURCE_OWNER_FILENAME"), "user.json"),

		ManagedTokenScopes: os.Getenv("TOKKIT_MANAGED_TOKEN_SCOPES"),
		ManagedTokenID:     os.Getenv("TOKKIT_MANAGED_TOKEN_ID"),

		TokenIntrospectionEndpoint:         os.Getenv("TOKKIT_TOKEN_INTROSPECTION_ENDPOINT"),
		TokenIntrospectionQueryParameter:   os.Getenv("TOKKIT_TOKEN_INTROSPECTION_QUERY_PARAMETER"),
		TokenIntrospectionFallbackEndpoint: os.Getenv("TOKKIT_TOKEN_INTROSPECTION_FALLBACK_ENDPOINT"),

		TokenInfoParserUserIDField:  os.Getenv("TOKKIT_TOKEN_INFO_PARSER_USER_ID_FIELD"),
		TokenInfoParserScopeField:   os.Getenv("TOKKIT_TOKEN_INFO_PARSER_SCOPE_FIELD"),
		TokenInfoParserExpiresField: os.Getenv("TOKKIT_TOKEN_INFO_PARSER_EXPIRES_FIELD"),

		LogLevel:       defaultString(os.Getenv("TOKKIT_LOG_LEVEL"), "info"),
		LogFile:        os.Getenv("TOKKIT_LOG_FILE"),
		RedisAddr:      os.Getenv("TOKKIT_REDIS_ADDR"),
		ManagementAddr: os.Getenv("TOKKIT_MANAGEMENT_ADDR"),
	}

	return c, nil
}

// yamlOverlay mirrors the subset of Config an operator may want to pin
// in a checked-in file rather than the process environment, for the
// cmd/tokkitd example binary. Any field left empty/zero does not
// override the corresponding environment-derived value.
type yamlOverlay struct {
	AuthorizationServerURL   string `yaml:"authorization_server_url"`
	AuthorizationServerRealm string `yaml:"authorization_server_realm"`
	ManagedTokenID           string `yaml:"managed_token_id"`
	ManagedTokenScopes       string `yaml:"managed_token_scopes"`
	LogLevel                 string `yaml:"log_level"`
	LogFile                  string `yaml:"log_file"`
	RedisAddr                string `yaml:"redis_addr"`
	ManagementAddr           string `yaml:"management_addr"`
}

// LoadYAMLOverlay reads a YAML file at path, if present, and overlays
// its non-empty fields onto c. A missing file is not an error, matching
// the .env convention Load already follows; a present-but-malformed
// file is.
func (c *Config) LoadYAMLOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	c.applyOverlay(overlay)
	log.WithField("path", path).Info("config: applied YAML overlay")
	return nil
}

func (c *Config) applyOverlay(o yamlOverlay) {
	c.AuthorizationServerURL = defaultString(o.AuthorizationServerURL, c.AuthorizationServerURL)
	c.AuthorizationServerRealm = defaultString(o.AuthorizationServerRealm, c.AuthorizationServerRealm)
	c.ManagedTokenID = defaultString(o.ManagedTokenID, c.ManagedTokenID)
	c.ManagedTokenScopes = defaultString(o.ManagedTokenScopes, c.ManagedTokenScopes)
	c.LogLevel = defaultString(o.LogLevel, c.LogLevel)
	c.LogFile = defaultString(o.LogFile, c.LogFile)
	c.RedisAddr = defaultString(o.RedisAddr, c.RedisAddr)
	c.ManagementAddr = defaultString(o.ManagementAddr, c.ManagementAddr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ParseLevel converts LogLevel into a logrus.Level, falling back to
// InfoLevel for an unrecognized or empty value.
func (c *Config) ParseLevel() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// ParseBool is a small helper for boolean-flavored env vars not
// otherwise modeled above (e.g. feature toggles in the example binary).
func ParseBool(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
