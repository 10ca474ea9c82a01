package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"newsdesk/internal/domain"

	"gopkg.in/yaml.v3"
)

type Seed struct {
	Interests SeedInterests `yaml:"interests"`
	Sources   []SeedSource  `yaml:"sources"`
}

type SeedInterests struct {
	Topics     []string       `yaml:"topics"`
	Priorities SeedPriorities `yaml:"priorities"`
}

type SeedPriorities struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
	Low    []string `yaml:"low"`
}

type SeedSource struct {
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	MaxArticles         int    `yaml:"max_articles"`
	DeepAnalysis        bool   `yaml:"deep_analysis"`
	AnalysisInstruction string `yaml:"analysis_instruction"`
}

// LoadSeed reads the seed file at path. A missing file yields an empty seed.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Seed{}, nil
	}
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	return seed, nil
}

func (s Seed) DomainInterests() domain.Interests {
	return domain.Interests{
		Topics: trimAll(s.Interests.Topics),
		High:   trimAll(s.Interests.Priorities.High),
		Medium: trimAll(s.Interests.Priorities.Medium),
		Low:    trimAll(s.Interests.Priorities.Low),
	}
}

// DomainSources converts seed sources, applying defaultMax where no limit is
// configured.
func (s Seed) DomainSources(defaultMax int) []domain.Source {
	sources := make([]domain.Source, 0, len(s.Sources))

	for _, src := range s.Sources {
		maxArticles := src.MaxArticles
		if maxArticles <= 0 {
			maxArticles = defaultMax
		}

		sources = append(sources, domain.Source{
			Name:                strings.TrimSpace(src.Name),
			URL:                 strings.TrimSpace(src.URL),
			MaxArticles:         maxArticles,
			DeepAnalysis:        src.DeepAnalysis,
			AnalysisInstruction: strings.TrimSpace(src.AnalysisInstruction),
		})
	}

	return sources
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}
