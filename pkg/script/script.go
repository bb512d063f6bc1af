// Package script loads the declarative YAML documents an operator
// hands to the console's "process" command: a fixed-schema list of
// hosts and experiments, replacing the original system's dynamic
// Python module loading with a format that can't execute arbitrary
// code on the scheduler.
package script

import (
	"fmt"
	"os"

	"github.com/benchlab/fleetsched/pkg/client"
	"github.com/benchlab/fleetsched/pkg/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// jobSpec is one job entry under an experiment in the YAML document.
type jobSpec struct {
	ID      string `yaml:"id"`
	Command string `yaml:"command"`
	Demand  int    `yaml:"demand"`
	Outdir  string `yaml:"outdir"`
}

// experimentSpec is one experiment entry in the YAML document.
type experimentSpec struct {
	Name   string    `yaml:"name"`
	Outdir string    `yaml:"outdir"`
	Jobs   []jobSpec `yaml:"jobs"`
}

// document is the top-level shape of a script file.
type document struct {
	Hosts       []client.HostConfig `yaml:"hosts"`
	Experiments []experimentSpec    `yaml:"experiments"`
}

// Document is the result of loading a script: the hosts and
// experiments it declared, deduplicated by name in file order.
type Document struct {
	Hosts       []*client.Host
	Experiments []*types.Experiment
}

// Load reads and parses the script at path. Hosts are constructed
// unconnected — the caller (the console) hands them to the scheduler's
// AddHosts, which dials each one.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}

	hosts, err := buildHosts(doc.Hosts)
	if err != nil {
		return nil, err
	}
	experiments, err := buildExperiments(doc.Experiments)
	if err != nil {
		return nil, err
	}

	return &Document{Hosts: hosts, Experiments: experiments}, nil
}

func buildHosts(specs []client.HostConfig) ([]*client.Host, error) {
	seen := make(map[string]struct{}, len(specs))
	hosts := make([]*client.Host, 0, len(specs))
	for _, cfg := range specs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("host entry missing name")
		}
		if _, dup := seen[cfg.Name]; dup {
			continue
		}
		seen[cfg.Name] = struct{}{}
		hosts = append(hosts, client.Deserialize(cfg))
	}
	return hosts, nil
}

func buildExperiments(specs []experimentSpec) ([]*types.Experiment, error) {
	seen := make(map[string]struct{}, len(specs))
	experiments := make([]*types.Experiment, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("experiment entry missing name")
		}
		if _, dup := seen[spec.Name]; dup {
			continue
		}
		seen[spec.Name] = struct{}{}

		jobs := make([]*types.Job, 0, len(spec.Jobs))
		for _, j := range spec.Jobs {
			if j.Command == "" {
				return nil, fmt.Errorf("experiment %s: job entry missing command", spec.Name)
			}
			id := j.ID
			if id == "" {
				id = uuid.NewString()
			}
			outdir := j.Outdir
			if outdir == "" {
				outdir = spec.Outdir
			}
			jobs = append(jobs, types.NewJob(id, spec.Name, outdir, j.Command, j.Command, outdir, j.Demand, nil, nil))
		}
		experiments = append(experiments, types.NewExperiment(spec.Name, spec.Outdir, jobs))
	}
	return experiments, nil
}
