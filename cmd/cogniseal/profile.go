package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// profile is the CLI configuration, read from ~/.cogniseal.yaml and
// COGNISEAL_* environment variables. Environment wins over the file.
type profile struct {
	Node           string `mapstructure:"node"`
	Keystore       string `mapstructure:"keystore"`
	SignatureCache string `mapstructure:"signature_cache"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	Passphrase     string `mapstructure:"passphrase"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cogniseal.yaml"
	}
	return filepath.Join(home, ".cogniseal.yaml")
}

// loadProfile reads the profile at path. A missing file is not an error.
func loadProfile(path string) (*profile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".cogniseal")

	vip := viper.New()
	vip.SetDefault("node", "http://localhost:8080")
	vip.SetDefault("keystore", filepath.Join(dataDir, "keystore.json"))
	vip.SetDefault("signature_cache", filepath.Join(dataDir, "signatures.json"))
	vip.SetDefault("log_level", "warn")
	vip.SetDefault("log_format", "pretty")
	vip.SetDefault("passphrase", "")

	vip.SetEnvPrefix("COGNISEAL")
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			vip.SetConfigFile(path)
			vip.SetConfigType("yaml")
			if err := vip.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read profile %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat profile %s: %w", path, err)
		}
	}

	var p profile
	if err := vip.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	p.Node = strings.TrimRight(p.Node, "/")
	return &p, nil
}

// passphrase returns the configured keystore passphrase or prompts for it.
func (p *profile) passphrase(prompt string) (string, error) {
	if p.Passphrase != "" {
		return p.Passphrase, nil
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
