package grading

import (
	"fmt"

	"github.com/spf13/viper"
)

type templateFile struct {
	Templates []*Template `mapstructure:"templates"`
}

// LoadTemplates builds the template registry. An empty path yields the
// built-in templates; otherwise the YAML/JSON/TOML file at path replaces them.
func LoadTemplates(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(DefaultTemplates()...)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read grading templates %s: %w", path, err)
	}

	var file templateFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to parse grading templates %s: %w", path, err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("grading templates %s: no templates defined", path)
	}

	return NewRegistry(file.Templates...)
}
