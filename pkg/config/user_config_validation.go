package config

import (
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/distribution/reference"
)

// Validate validates the user config
func (config *UserConfig) Validate() error {
	if _, err := reference.ParseNormalizedNamed(config.Build.BaseImage); err != nil {
		return fmt.Errorf("Invalid base image '%s': %v", config.Build.BaseImage, err)
	}

	if config.Build.Platform != "" {
		if _, err := NormalizePlatform(config.Build.Platform); err != nil {
			return err
		}
	}

	for _, dir := range []string{config.Layout.SourceDir, config.Layout.BuildDir} {
		if !path.IsAbs(dir) {
			return fmt.Errorf("In-image directory '%s' must be absolute", dir)
		}
	}

	if err := validateMixinsRecurse("", config.Mixins); err != nil {
		return err
	}

	return nil
}

// validateMixinsRecurse walks the mixin classes making sure every entry is a
// bare mixin name, since each of them becomes a directory under the mixin dir
func validateMixinsRecurse(path string, node interface{}) error {
	value := reflect.ValueOf(node)
	switch value.Kind() {
	case reflect.Struct:
		for _, field := range reflect.VisibleFields(reflect.TypeOf(node)) {
			newPath := field.Name
			if len(path) > 0 {
				newPath = fmt.Sprintf("%s.%s", path, field.Name)
			}
			if err := validateMixinsRecurse(newPath, value.FieldByName(field.Name).Interface()); err != nil {
				return err
			}
		}
	case reflect.Slice:
		for i := 0; i < value.Len(); i++ {
			if err := validateMixinsRecurse(fmt.Sprintf("%s[%d]", path, i), value.Index(i).Interface()); err != nil {
				return err
			}
		}
	case reflect.String:
		name := node.(string)
		if name == "" || strings.ContainsAny(name, "/\\ ") {
			return fmt.Errorf("Unrecognized mixin name '%s' for '%s'", name, path)
		}
	}
	return nil
}
