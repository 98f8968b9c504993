package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"

	"github.com/alecthomas/kingpin/v2"
)

// storedConfig is the handful of global flags worth persisting locally so
// they don't need to be retyped on every invocation. It is a convenience
// cache only: clientConfig never reads it directly, and environment
// variables and flags always take precedence over it (see app.go).
type storedConfig struct {
	Key     string `json:"key,omitempty"`
	KeyName string `json:"keyName,omitempty"`
	Host    string `json:"host,omitempty"`
	SSL     *bool  `json:"ssl,omitempty"`
	CPCode  string `json:"cpCode,omitempty"`
}

// commandConfig implements config {set,show,clear,path}, a thin local-file
// view over the handful of fields worth caching between invocations. It
// deliberately does not participate in any config-file precedence chain;
// flags and environment variables always win, per the package doc comment.
type commandConfig struct {
	svc *App

	setField string
	setValue string
}

func (c *commandConfig) setup(svc *App, parent commandParent) {
	c.svc = svc

	config := parent.Command("config", "Manage the local convenience config file")

	set := config.Command("set", "Set a field in the local config file")
	set.Arg("field", "key, key-name, host, ssl, or cp-code").Required().StringVar(&c.setField)
	set.Arg("value", "New value").Required().StringVar(&c.setValue)
	set.Action(c.runSet)

	show := config.Command("show", "Print the local config file contents")
	show.Action(c.runShow)

	clear := config.Command("clear", "Remove the local config file")
	clear.Action(c.runClear)

	path := config.Command("path", "Print the local config file path")
	path.Action(c.runPath)
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", pkgerrors.Wrap(err, "resolve user config directory")
	}

	return filepath.Join(dir, "netstorage", "config.json"), nil
}

func loadStoredConfig() (*storedConfig, error) {
	p, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return &storedConfig{}, nil
		}

		return nil, pkgerrors.Wrapf(err, "read %s", p)
	}

	var cfg storedConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse %s", p)
	}

	return &cfg, nil
}

func saveStoredConfig(cfg *storedConfig) error {
	p, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return pkgerrors.Wrapf(err, "create %s", filepath.Dir(p))
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "encode config")
	}

	if err := os.WriteFile(p, data, 0o600); err != nil {
		return pkgerrors.Wrapf(err, "write %s", p)
	}

	return nil
}

func (c *commandConfig) runSet(*kingpin.ParseContext) error {
	cfg, err := loadStoredConfig()
	if err != nil {
		c.svc.reportError(err)
		c.svc.osExit(1)

		return nil
	}

	switch c.setField {
	case "key":
		cfg.Key = c.setValue
	case "key-name":
		cfg.KeyName = c.setValue
	case "host":
		cfg.Host = c.setValue
	case "ssl":
		v := c.setValue == "true"
		cfg.SSL = &v
	case "cp-code":
		cfg.CPCode = c.setValue
	default:
		c.svc.errorf("error: unknown field %q (want key, key-name, host, ssl, or cp-code)\n", c.setField)
		c.svc.osExit(1)

		return nil
	}

	if err := saveStoredConfig(cfg); err != nil {
		c.svc.reportError(err)
		c.svc.osExit(1)
	}

	return nil
}

func (c *commandConfig) runShow(*kingpin.ParseContext) error {
	cfg, err := loadStoredConfig()
	if err != nil {
		c.svc.reportError(err)
		c.svc.osExit(1)

		return nil
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		c.svc.reportError(err)
		c.svc.osExit(1)

		return nil
	}

	c.svc.printf("%s\n", data)

	return nil
}

func (c *commandConfig) runClear(*kingpin.ParseContext) error {
	p, err := configPath()
	if err != nil {
		c.svc.reportError(err)
		c.svc.osExit(1)

		return nil
	}

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		c.svc.reportError(pkgerrors.Wrapf(err, "remove %s", p))
		c.svc.osExit(1)
	}

	return nil
}

func (c *commandConfig) runPath(*kingpin.ParseContext) error {
	p, err := configPath()
	if err != nil {
		c.svc.reportError(err)
		c.svc.osExit(1)

		return nil
	}

	c.svc.printf("%s\n", p)

	return nil
}
