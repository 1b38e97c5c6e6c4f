package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Keywords holds the weighted keyword lists driving industry fit scoring.
// Positive lists accumulate per match; negative lists apply at most once
// each, and only when no positive keyword matched at all.
type Keywords struct {
	Strong       []string `yaml:"strong"`
	Medium       []string `yaml:"medium"`
	Weak         []string `yaml:"weak"`
	HardNegative []string `yaml:"hard_negative"`
	SoftNegative []string `yaml:"soft_negative"`

	Weights Weights `yaml:"weights"`
}

// Weights are the per-list score contributions.
type Weights struct {
	Strong       int `yaml:"strong"`
	Medium       int `yaml:"medium"`
	Weak         int `yaml:"weak"`
	HardNegative int `yaml:"hard_negative"`
	SoftNegative int `yaml:"soft_negative"`
}

// DefaultKeywords returns the built-in keyword set tuned for wide-format
// printing and signage exhibitors.
func DefaultKeywords() Keywords {
	return Keywords{
		Strong: []string{
			"wide format", "wide-format", "large format", "large-format",
			"signage", "sign shop", "vehicle wrap", "car wrap",
			"fleet graphics", "architectural graphics", "wall wrap",
			"window film", "vinyl wrap", "commercial graphics",
		},
		Medium: []string{
			"graphics", "graphic", "printing", "print", "digital print",
			"banner", "display", "exhibit", "trade show display",
			"lamination", "film", "adhesive", "wrap", "plotter",
			"cutting", "cnc", "fabrication",
		},
		Weak: []string{
			"installation", "wayfinding", "retail graphics", "branding",
			"promotional",
		},
		HardNegative: []string{
			"restaurant", "bank", "insurance", "investment", "dental",
			"hospital", "clinic", "school", "university", "real estate",
			"law firm", "accounting",
		},
		SoftNegative: []string{
			"software", "consulting", "media", "association",
		},
		Weights: Weights{
			Strong:       3,
			Medium:       2,
			Weak:         1,
			HardNegative: -3,
			SoftNegative: -1,
		},
	}
}

type keywordsFile struct {
	Keywords Keywords `yaml:"keywords"`
}

// LoadKeywords reads a keyword override file. Lists or weights left unset
// in the file keep their defaults.
func LoadKeywords(path string) (Keywords, error) {
	defaults := DefaultKeywords()

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, eris.Wrapf(err, "classify: read keywords %s", path)
	}

	var f keywordsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return defaults, eris.Wrapf(err, "classify: parse keywords %s", path)
	}

	kw := f.Keywords
	if len(kw.Strong) == 0 {
		kw.Strong = defaults.Strong
	}
	if len(kw.Medium) == 0 {
		kw.Medium = defaults.Medium
	}
	if len(kw.Weak) == 0 {
		kw.Weak = defaults.Weak
	}
	if len(kw.HardNegative) == 0 {
		kw.HardNegative = defaults.HardNegative
	}
	if len(kw.SoftNegative) == 0 {
		kw.SoftNegative = defaults.SoftNegative
	}
	if kw.Weights.Strong == 0 {
		kw.Weights.Strong = defaults.Weights.Strong
	}
	if kw.Weights.Medium == 0 {
		kw.Weights.Medium = defaults.Weights.Medium
	}
	if kw.Weights.Weak == 0 {
		kw.Weights.Weak = defaults.Weights.Weak
	}
	if kw.Weights.HardNegative == 0 {
		kw.Weights.HardNegative = defaults.Weights.HardNegative
	}
	if kw.Weights.SoftNegative == 0 {
		kw.Weights.SoftNegative = defaults.Weights.SoftNegative
	}

	return kw, nil
}
