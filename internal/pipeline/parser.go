package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	latcherr "github.com/latch-ci/latch/internal/errors"
)

// Load reads and parses a pipeline definition file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, latcherr.Newf(latcherr.CodePipelineNotFound, "pipeline file %s not found", path)
		}
		return nil, latcherr.Newf(latcherr.CodeIOReadError, "reading %s", path).WithCause(err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = defaultName(path)
	}
	return p, nil
}

// Parse decodes a pipeline definition and applies defaults. The result
// is validated; callers get either a usable pipeline or an error.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, latcherr.New(latcherr.CodePipelineParseError, "parsing pipeline definition").WithCause(err)
	}

	applyDefaults(&p)

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// applyDefaults fills unset fields.
func applyDefaults(p *Pipeline) {
	if p.Concurrency.Group == "" {
		if p.Name != "" {
			p.Concurrency.Group = p.Name + "-${ref}"
		} else {
			p.Concurrency.Group = "run-${ref}"
		}
	}
	for i := range p.Jobs {
		job := &p.Jobs[i]
		for s := range job.Steps {
			step := &job.Steps[s]
			if step.ID == "" {
				step.ID = step.DisplayName()
			}
		}
	}
}

// defaultName derives a pipeline name from its file name.
func defaultName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base
}
