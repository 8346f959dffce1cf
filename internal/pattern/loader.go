package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	TestcasesFile = "testcases.yaml"
	FlowsFile     = "expressions.yaml"
	PacksDir      = "packs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Pack is an extra file of bug patterns stored under <config>/packs/.
type Pack struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	PackVersion string     `yaml:"version"`
	Author      string     `yaml:"author"`
	Testcases   []Testcase `yaml:"testcases"`
}

// Load reads the base testcases, the flow library and every enabled pack from
// configDir. Pack testcases are appended after the base ones, so indices of
// the base file are stable.
func Load(configDir string) (*Library, error) {
	testcases, err := LoadTestcases(filepath.Join(configDir, TestcasesFile))
	if err != nil {
		return nil, err
	}
	flows, err := LoadFlows(filepath.Join(configDir, FlowsFile))
	if err != nil {
		return nil, err
	}

	packed, infos, err := LoadPacks(filepath.Join(configDir, PacksDir))
	if err != nil {
		return nil, err
	}

	return &Library{
		Testcases: append(testcases, packed...),
		Flows:     flows,
		Packs:     infos,
	}, nil
}

// LoadTestcases parses an ordered list of bug patterns.
func LoadTestcases(path string) ([]Testcase, error) {
	var testcases []Testcase
	if err := readYAML(path, &testcases); err != nil {
		return nil, err
	}
	for i := range testcases {
		if err := validate.Struct(&testcases[i]); err != nil {
			return nil, fmt.Errorf("%s: testcase %d: %w", path, i, err)
		}
	}
	return testcases, nil
}

// LoadFlows parses an ordered list of flow templates.
func LoadFlows(path string) ([]Flow, error) {
	var flows []Flow
	if err := readYAML(path, &flows); err != nil {
		return nil, err
	}
	for i := range flows {
		if err := validate.Struct(&flows[i]); err != nil {
			return nil, fmt.Errorf("%s: flow %d: %w", path, i, err)
		}
	}
	return flows, nil
}

// LoadPacks reads all .yaml files from packsDir in directory order. Files
// whose base name starts with an underscore are listed but disabled. A pack
// that fails to parse is reported in its PackInfo and skipped.
func LoadPacks(packsDir string) ([]Testcase, []PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var (
		testcases []Testcase
		infos     []PackInfo
	)
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		if err != nil {
			infos = append(infos, PackInfo{Name: baseName, Enabled: enabled, Path: path, Err: err})
			continue
		}

		info := PackInfo{
			Name:          pack.Name,
			Description:   pack.Description,
			Version:       pack.PackVersion,
			Author:        pack.Author,
			Enabled:       enabled,
			Path:          path,
			TestcaseCount: len(pack.Testcases),
		}
		if info.Name == "" {
			info.Name = baseName
		}
		infos = append(infos, info)

		if enabled {
			testcases = append(testcases, pack.Testcases...)
		}
	}

	return testcases, infos, nil
}

func loadPack(path string) (*Pack, error) {
	var pack Pack
	if err := readYAML(path, &pack); err != nil {
		return nil, err
	}
	for i := range pack.Testcases {
		if err := validate.Struct(&pack.Testcases[i]); err != nil {
			return nil, fmt.Errorf("testcase %d: %w", i, err)
		}
	}
	return &pack, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
