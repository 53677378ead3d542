package labelprovider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the shape of the operator-supplied registry overlay.
type overlayFile struct {
	Labels []OverlayEntry `yaml:"labels"`
}

// LoadOverlayFile reads a YAML overlay of address labels, the runtime
// counterpart of the embedded registry: operators extend or override
// entries without a rebuild.
func LoadOverlayFile(path string) ([]OverlayEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay file: %w", err)
	}
	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse overlay file: %w", err)
	}
	for i, e := range f.Labels {
		if e.Address == "" {
			return nil, fmt.Errorf("overlay entry %d: address is required", i)
		}
		if e.Chain == "" {
			return nil, fmt.Errorf("overlay entry %d (%s): chain is required", i, e.Address)
		}
	}
	return f.Labels, nil
}
