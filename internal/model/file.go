package model

import (
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// FileModel is a project stored as a YAML document on disk.
type FileModel struct {
	path string
	doc  projectDoc
	tbl  *MiningTable
}

type projectDoc struct {
	Name       string               `yaml:"name"`
	Domain     Domain               `yaml:"domain"`
	Parameters map[string][]float64 `yaml:"parameters,omitempty"`
	Options    map[string]string    `yaml:"options,omitempty"`
	Properties []string             `yaml:"properties,omitempty"`
	Reservoirs []string             `yaml:"reservoirs,omitempty"`
	Requested  []string             `yaml:"requested,omitempty"`
	Table      []Row                `yaml:"table,omitempty"`
}

// Spec describes a new in-memory project.
type Spec struct {
	Name       string
	Domain     Domain
	Parameters map[string][]float64
	Options    map[string]string
	Properties []string
	Reservoirs []string
}

// New builds an unsaved project from s.
func New(s Spec) *FileModel {
	m := &FileModel{
		doc: projectDoc{
			Name:       s.Name,
			Domain:     s.Domain,
			Parameters: make(map[string][]float64, len(s.Parameters)),
			Options:    make(map[string]string, len(s.Options)),
			Properties: slices.Clone(s.Properties),
			Reservoirs: slices.Clone(s.Reservoirs),
		},
		tbl: NewMiningTable(),
	}
	for k, v := range s.Parameters {
		m.doc.Parameters[k] = slices.Clone(v)
	}
	for k, v := range s.Options {
		m.doc.Options[k] = v
	}
	return m
}

// Open reads a project from path.
func Open(path string) (*FileModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, casaerr.Wrap(casaerr.IoError, "model.Open", err, "can not read project %s", path)
	}
	var doc projectDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, casaerr.Wrap(casaerr.IoError, "model.Open", err, "can not parse project %s", path)
	}
	if doc.Parameters == nil {
		doc.Parameters = make(map[string][]float64)
	}
	if doc.Options == nil {
		doc.Options = make(map[string]string)
	}
	tbl := NewMiningTable()
	tbl.rows = doc.Table
	doc.Table = nil
	return &FileModel{path: path, doc: doc, tbl: tbl}, nil
}

// Name returns the project name.
func (m *FileModel) Name() string { return m.doc.Name }

func (m *FileModel) Path() string   { return m.path }
func (m *FileModel) Domain() Domain { return m.doc.Domain }

func (m *FileModel) Parameter(key string) ([]float64, error) {
	v, ok := m.doc.Parameters[key]
	if !ok {
		return nil, casaerr.New(casaerr.UndefinedValue, "model.Parameter", "project has no parameter %q", key)
	}
	return slices.Clone(v), nil
}

func (m *FileModel) SetParameter(key string, vals []float64) error {
	if key == "" {
		return casaerr.New(casaerr.UndefinedValue, "model.SetParameter", "empty parameter key")
	}
	m.doc.Parameters[key] = slices.Clone(vals)
	return nil
}

func (m *FileModel) Option(key string) (string, error) {
	v, ok := m.doc.Options[key]
	if !ok {
		return "", casaerr.New(casaerr.UndefinedValue, "model.Option", "project has no option %q", key)
	}
	return v, nil
}

func (m *FileModel) SetOption(key, value string) error {
	if key == "" {
		return casaerr.New(casaerr.UndefinedValue, "model.SetOption", "empty option key")
	}
	m.doc.Options[key] = value
	return nil
}

func (m *FileModel) HasProperty(name string) bool {
	return slices.Contains(m.doc.Properties, name)
}

func (m *FileModel) HasReservoir(name string) bool {
	return slices.Contains(m.doc.Reservoirs, name)
}

func (m *FileModel) RequestProperty(name string) error {
	if !m.HasProperty(name) {
		return casaerr.New(casaerr.UndefinedValue, "model.RequestProperty", "project does not compute property %q", name)
	}
	if !slices.Contains(m.doc.Requested, name) {
		m.doc.Requested = append(m.doc.Requested, name)
	}
	return nil
}

// Requested lists the properties requested so far.
func (m *FileModel) Requested() []string { return slices.Clone(m.doc.Requested) }

func (m *FileModel) Table() *MiningTable { return m.tbl }

// CopyTo saves a copy of the project at path, creating parent folders.
func (m *FileModel) CopyTo(path string) (Model, error) {
	c := &FileModel{
		path: path,
		doc:  m.doc,
		tbl:  m.tbl.clone(),
	}
	c.doc.Parameters = make(map[string][]float64, len(m.doc.Parameters))
	for k, v := range m.doc.Parameters {
		c.doc.Parameters[k] = slices.Clone(v)
	}
	c.doc.Options = make(map[string]string, len(m.doc.Options))
	for k, v := range m.doc.Options {
		c.doc.Options[k] = v
	}
	c.doc.Properties = slices.Clone(m.doc.Properties)
	c.doc.Reservoirs = slices.Clone(m.doc.Reservoirs)
	c.doc.Requested = slices.Clone(m.doc.Requested)
	if err := c.Save(); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveAs stores the project at path and makes it the project's location.
func (m *FileModel) SaveAs(path string) error {
	m.path = path
	return m.Save()
}

func (m *FileModel) Save() error {
	if m.path == "" {
		return casaerr.New(casaerr.IoError, "model.Save", "project %q has no path", m.doc.Name)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return casaerr.Wrap(casaerr.IoError, "model.Save", err, "can not create folder for %s", m.path)
	}
	doc := m.doc
	doc.Table = m.tbl.rows
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return casaerr.Wrap(casaerr.IoError, "model.Save", err, "can not encode project %s", m.path)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return casaerr.Wrap(casaerr.IoError, "model.Save", err, "can not write project %s", m.path)
	}
	return nil
}
