package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/catalog"
	"github.com/couchcryptid/storm-data-blobtag/internal/labels"
)

// Job is the YAML job file: the node catalog, the blob sets to tag and the
// label scheme.
type Job struct {
	Nodes     NodeSource     `yaml:"nodes"`
	Sets      []BlobSet      `yaml:"sets"`
	Labels    *labels.Scheme `yaml:"labels"`
	OutputDir string         `yaml:"output_dir"`

	path string
}

// NodeSource locates the node catalog.
type NodeSource struct {
	Path   string              `yaml:"path"`
	Format catalog.ReadOptions `yaml:"format"`
	Fields catalog.NodeColumns `yaml:"fields"`
}

// BlobSet is one family of blobs (for example precipitation or size blobs)
// with its statistics table, masks and outputs.
type BlobSet struct {
	Name      string              `yaml:"name"`
	Stats     string              `yaml:"stats"`
	Format    catalog.ReadOptions `yaml:"format"`
	Fields    catalog.BlobColumns `yaml:"fields"`
	Prepaired bool                `yaml:"prepaired"`

	Masks    string `yaml:"masks"`
	Variable string `yaml:"variable"`

	TaggedOutput string `yaml:"tagged_output"`
	MaskOutput   string `yaml:"mask_output"`
	MaskPrefix   string `yaml:"mask_prefix"`
}

// Path returns the file the job was loaded from.
func (j *Job) Path() string {
	return j.path
}

// LoadJob reads and validates a job file. Relative paths resolve against
// the job file's directory. A missing labels section selects the default
// scheme.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var job Job
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}
	job.path = path
	job.applyDefaults(filepath.Dir(path))
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return &job, nil
}

func (j *Job) applyDefaults(base string) {
	if j.Labels == nil {
		s := labels.DefaultScheme()
		j.Labels = &s
	}
	if j.Labels.Precedence == "" {
		j.Labels.Precedence = labels.LastMatch
	}
	if j.OutputDir == "" {
		j.OutputDir = "out"
	}
	j.OutputDir = resolve(base, j.OutputDir)
	j.Nodes.Path = resolve(base, j.Nodes.Path)

	for i := range j.Sets {
		s := &j.Sets[i]
		s.Stats = resolve(base, s.Stats)
		s.Masks = resolve(base, s.Masks)
		if s.TaggedOutput == "" && s.Name != "" {
			s.TaggedOutput = filepath.Join(j.OutputDir, s.Name+"_blob_stats.parquet")
		}
		s.TaggedOutput = resolve(base, s.TaggedOutput)
		if s.MaskOutput == "" {
			s.MaskOutput = filepath.Join(j.OutputDir, s.Name+"_masks")
		}
		s.MaskOutput = resolve(base, s.MaskOutput)
		if s.MaskPrefix == "" {
			s.MaskPrefix = s.Name + "_blobs"
		}
	}
}

// Validate checks the job for missing paths, duplicate set names and an
// invalid label scheme.
func (j *Job) Validate() error {
	var errs []error
	if j.Nodes.Path == "" {
		errs = append(errs, errors.New("nodes.path is required"))
	}
	if len(j.Sets) == 0 {
		errs = append(errs, errors.New("at least one blob set is required"))
	}
	seen := make(map[string]bool)
	for i, s := range j.Sets {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("sets[%d]: name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("sets[%d]: duplicate set name %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.Stats == "" {
			errs = append(errs, fmt.Errorf("sets[%d]: stats is required", i))
		}
	}
	if j.Labels != nil {
		if err := j.Labels.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("labels: %w", err))
		}
	}
	return errors.Join(errs...)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
