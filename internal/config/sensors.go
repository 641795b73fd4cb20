package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/sentinel/internal/domain"
)

// sensorEntry is one line of the sensor registry file: a stable id, a
// human alias profile detection is run against, and a hall-ambient flag.
type sensorEntry struct {
	ID            string `yaml:"id"`
	Alias         string `yaml:"alias"`
	IsHallAmbient bool   `yaml:"is_hall_ambient"`
}

type sensorFile struct {
	Sensors []sensorEntry `yaml:"sensors"`
}

// LoadSensors reads the fleet registry from a YAML file: the set of sensor
// ids the engine polls every cycle, plus which one (if any) is the hall
// ambient reference. Unlike EngineConfig, there is no built-in default —
// an empty or missing file yields zero sensors and the engine idles.
func LoadSensors(path string) ([]domain.Sensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sensor registry: %w", err)
	}

	var sf sensorFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sensor registry yaml: %w", err)
	}

	sensors := make([]domain.Sensor, 0, len(sf.Sensors))
	for _, e := range sf.Sensors {
		if e.ID == "" {
			return nil, fmt.Errorf("sensor registry: entry with empty id")
		}
		sensors = append(sensors, domain.Sensor{
			ID:            e.ID,
			Alias:         e.Alias,
			Profile:       domain.DetectProfile(e.Alias),
			IsHallAmbient: e.IsHallAmbient,
		})
	}
	return sensors, nil
}
