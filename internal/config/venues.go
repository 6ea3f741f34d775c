package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VenueSettings дефолты одной биржи из venues-файла
type VenueSettings struct {
	BaseURL       string  `yaml:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// Venues содержимое venues-файла
type Venues struct {
	Venues map[string]VenueSettings `yaml:"venues"`
}

// LoadVenues загружает дефолты бирж из YAML
func LoadVenues(path string) (*Venues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var venues Venues
	if err := yaml.Unmarshal(data, &venues); err != nil {
		return nil, err
	}

	return &venues, nil
}

// Lookup ищет настройки биржи без учёта регистра
func (v *Venues) Lookup(exchange string) (VenueSettings, bool) {
	settings, ok := v.Venues[strings.ToLower(exchange)]
	return settings, ok
}
