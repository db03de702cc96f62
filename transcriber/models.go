package transcriber

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const DefaultModel = "ggml-large-v3-turbo-q8_0.bin"

// ListModels returns the .bin file names in dir, sorted.
func ListModels(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var models []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".bin") {
			models = append(models, e.Name())
		}
	}
	slices.Sort(models)
	return models, nil
}

// ResolveModel makes sure dir exists and returns the model to use. When name
// is missing the first available model is chosen and changed is true.
func ResolveModel(dir, name string) (model string, changed bool, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating models dir: %w", err)
	}
	models, err := ListModels(dir)
	if err != nil {
		return "", false, err
	}
	if len(models) == 0 {
		return "", false, fmt.Errorf("%w in %s; download a ggml model from %s", ErrNoModels, dir, ModelsURL)
	}
	if name != "" && slices.Contains(models, name) {
		return name, false, nil
	}
	return models[0], models[0] != name, nil
}

func ModelPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// ModelLabel shortens a model file name for menus: ggml-base.en.bin -> base.en.
func ModelLabel(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimPrefix(name, "ggml-")
}
