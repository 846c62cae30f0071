package mockdb

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/EmaRG1/user-manager/internal/model"
)

//go:embed seed.yaml
var defaultSeed []byte

type Seed struct {
	Users     []model.User    `yaml:"users"`
	Studies   []model.Study   `yaml:"studies"`
	Addresses []model.Address `yaml:"addresses"`
}

// DefaultSeed returns the bundled demo fixtures.
func DefaultSeed() (Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads fixtures from path, or the bundled ones when path is empty.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	for _, u := range seed.Users {
		if u.ID == 0 || u.Email == "" {
			return Seed{}, fmt.Errorf("parse seed: user without id or email")
		}
		if !u.Role.Valid() {
			return Seed{}, fmt.Errorf("parse seed: user %d has unknown role %q", u.ID, u.Role)
		}
	}
	return seed, nil
}
