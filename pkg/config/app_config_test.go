package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jesseduffield/yaml"
	"github.com/stretchr/testify/assert"
)

func TestNewAppConfigUsesConfigDirEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	conf, err := NewAppConfig("gdev", "version", "commit", "date", "buildSource", false)
	assert.NoError(t, err)
	assert.EqualValues(t, dir, conf.ConfigDir)
	assert.EqualValues(t, filepath.Join(dir, "config.yml"), conf.ConfigFilename())
	assert.FileExists(t, conf.ConfigFilename())

	// an empty config file gives us the defaults
	assert.EqualValues(t, GetDefaultConfig(), *conf.UserConfig)
}

func TestNewAppConfigMergesUserConfigOverDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	content := `
build:
  registry: registry.example.com/gaia
  platform: arm64
mixins:
  debugger:
    - gdb
    - lldb
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))

	conf, err := NewAppConfig("gdev", "version", "commit", "date", "buildSource", false)
	assert.NoError(t, err)

	userConfig := conf.UserConfig
	assert.EqualValues(t, "registry.example.com/gaia", userConfig.Build.Registry)
	assert.EqualValues(t, "arm64", userConfig.Build.Platform)
	assert.EqualValues(t, []string{"gdb", "lldb"}, userConfig.Mixins.Debugger)

	// untouched keys keep their defaults
	defaults := GetDefaultConfig()
	assert.EqualValues(t, defaults.Build.BaseImage, userConfig.Build.BaseImage)
	assert.EqualValues(t, defaults.Build.ShmSize, userConfig.Build.ShmSize)
	assert.EqualValues(t, defaults.Layout, userConfig.Layout)
	assert.EqualValues(t, defaults.Mixins.HostIdentity, userConfig.Mixins.HostIdentity)
}

func TestNewAppConfigRejectsInvalidUserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	content := `
layout:
  buildDir: build
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))

	_, err := NewAppConfig("gdev", "version", "commit", "date", "buildSource", false)
	assert.EqualError(t, err, "In-image directory 'build' must be absolute")
}

func TestWritingToConfigFile(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())

	conf, err := NewAppConfig("name", "version", "commit", "date", "buildSource", false)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	testFn := func(t *testing.T, ac *AppConfig, newValue string) {
		t.Helper()
		updateFn := func(uc *UserConfig) error {
			uc.Build.Registry = newValue
			return nil
		}

		err = ac.WriteToUserConfig(updateFn)
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		file, err := os.OpenFile(ac.ConfigFilename(), os.O_RDONLY, 0o660)
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		sampleUC := UserConfig{}
		err = yaml.NewDecoder(file).Decode(&sampleUC)
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		err = file.Close()
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		if sampleUC.Build.Registry != newValue {
			t.Fatalf("Got %v, Expected %v\n", sampleUC.Build.Registry, newValue)
		}
	}

	// insert value into an empty file
	testFn(t, conf, "registry.example.com")

	// modify an existing file that already has the key
	testFn(t, conf, "other.example.com")
}
