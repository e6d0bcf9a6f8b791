package prompt

import (
	"os"

	"gopkg.in/yaml.v3"
)

// personalityFile is the on-disk personality-bias document.
type personalityFile struct {
	Hint string `yaml:"hint"`
}

// LoadPersonalityHint reads the optional personality-bias file. A
// missing or unreadable file yields an empty hint, never an error: the
// companion just runs with its stock personality.
func LoadPersonalityHint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	var doc personalityFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.Hint
}

// SavePersonalityHint rewrites the personality-bias file.
func SavePersonalityHint(path, hint string) error {
	data, err := yaml.Marshal(&personalityFile{Hint: hint})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
