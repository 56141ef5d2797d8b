package dict

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// builtinFile lists the identifiers of the Terra and Aqua missions.
var builtinFile = File{
	Spacecraft: []FileEntry{
		{Name: "terra", ID: 42},
		{Name: "aqua", ID: 154},
	},
	VirtualChannels: []FileEntry{
		{Name: "aqua_gbad", ID: 3},
		{Name: "aqua_ceres_10", ID: 10},
		{Name: "aqua_ceres_15", ID: 15},
		{Name: "aqua_amsu_20", ID: 20},
		{Name: "aqua_amsu_25", ID: 25},
		{Name: "aqua_modis", ID: 30},
		{Name: "aqua_airs", ID: 35},
		{Name: "aqua_amsr", ID: 40},
		{Name: "aqua_hsb", ID: 45},
	},
	Applications: []FileEntry{
		{Name: "aqua_modis", ID: 64},
		{Name: "fill", ID: 2047},
	},
}

// Builtin returns the compiled-in tables.
func Builtin() *Store {
	s, err := FromFile(builtinFile)
	if err != nil {
		panic(err)
	}
	return s
}

// Load reads a dictionary file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	return FromFile(file)
}

func EnsureLoaded(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty dictionary path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("dictionary path %s is a directory", path)
	}
	return Load(path)
}

// LoadWithBuiltin overlays an optional dictionary file on the built-in
// tables. An empty path returns the built-in tables.
func LoadWithBuiltin(path string) (*Store, error) {
	base := Builtin()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	extra, err := EnsureLoaded(path)
	if err != nil {
		return nil, err
	}
	return base.Merge(extra), nil
}
