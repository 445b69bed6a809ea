package overlay

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Labels maps classifier class indices to display names.
type Labels map[int]string

type labelFile struct {
	Labels map[int]string `yaml:"labels"`
}

// LoadLabels reads a YAML label file of the form
//
//	labels:
//	  0: background
//	  1: eating
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	var file labelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	labels := make(Labels, len(file.Labels))
	for class, name := range file.Labels {
		if name = strings.TrimSpace(name); name != "" {
			labels[class] = name
		}
	}
	return labels, nil
}

// Name returns the display name for a class index.
func (l Labels) Name(class int) string {
	if name, ok := l[class]; ok {
		return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
	}
	return "class " + strconv.Itoa(class)
}
