package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Token     string
	TokenFile string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config seeded from TTT_ environment variables
func DefaultConfig() *Config {
	v := cliEnv()
	return &Config{
		ServerURL: v.GetString("server"),
		Token:     v.GetString("token"),
		TokenFile: v.GetString("token_file"),
		Output:    "text",
		Verbose:   false,
	}
}

// cliEnv reads TTT_SERVER, TTT_TOKEN, TTT_TOKEN_FILE and TTT_AUTH_SECRET
func cliEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TTT")
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("token_file", defaultTokenFile())
	v.SetDefault("auth_secret", "")
	return v
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken writes token to the token file, readable by the owner only
func (c *Config) SaveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.TokenFile), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(c.TokenFile, []byte(token), 0600); err != nil {
		return err
	}
	c.Token = token
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tttctl", "token")
	}
	return filepath.Join(home, ".tttctl", "token")
}
