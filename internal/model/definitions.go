package model

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbkit/internal/errs"
)

// Definitions is the YAML form of a set of table declarations.
//
//	tables:
//	  - name: users
//	    columns:
//	      - {name: id, type: INTEGER, primary_key: true, autoincrement: true}
//	      - {name: email, type: VARCHAR(255), nullable: false, unique: true}
//	    unique_constraints:
//	      - columns: [org_id, email]
type Definitions struct {
	Tables []TableDef `yaml:"tables"`
}

type TableDef struct {
	Name              string          `yaml:"name"`
	Schema            string          `yaml:"schema"`
	Columns           []ColumnDef     `yaml:"columns"`
	UniqueConstraints []ConstraintDef `yaml:"unique_constraints"`
	Indexes           []IndexDef      `yaml:"indexes"`
}

type ColumnDef struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Nullable        *bool  `yaml:"nullable"`
	PrimaryKey      bool   `yaml:"primary_key"`
	Unique          bool   `yaml:"unique"`
	AutoIncrement   bool   `yaml:"autoincrement"`
	Default         any    `yaml:"default"`
	DefaultFunction string `yaml:"default_function"`
	References      string `yaml:"references"`
}

type ConstraintDef struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

type IndexDef struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
}

// LoadDefinitions reads table declarations from a YAML file.
func LoadDefinitions(path string) ([]*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "open model definitions", err)
	}
	defer f.Close()
	return DecodeDefinitions(f)
}

// DecodeDefinitions parses YAML declarations from r.
func DecodeDefinitions(r io.Reader) ([]*Table, error) {
	var defs Definitions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "decode model definitions", err)
	}

	tables := make([]*Table, 0, len(defs.Tables))
	seen := map[string]bool{}
	for _, td := range defs.Tables {
		t, err := td.Table()
		if err != nil {
			return nil, err
		}
		if seen[t.String()] {
			return nil, errs.Newf(errs.ErrKindConfiguration, "table %q defined twice", t.String())
		}
		seen[t.String()] = true
		tables = append(tables, t)
	}
	return tables, nil
}

// Table converts the definition into a validated Table.
func (td TableDef) Table() (*Table, error) {
	t := &Table{Name: td.Name, Schema: td.Schema}
	for _, cd := range td.Columns {
		col := Column{
			Name:          cd.Name,
			Type:          cd.Type,
			Nullable:      !cd.PrimaryKey,
			PrimaryKey:    cd.PrimaryKey,
			Unique:        cd.Unique,
			AutoIncrement: cd.AutoIncrement,
		}
		if cd.Nullable != nil {
			col.Nullable = *cd.Nullable
		}
		switch {
		case cd.DefaultFunction != "":
			col.Default = &Default{Function: cd.DefaultFunction}
		case cd.Default != nil:
			col.Default = &Default{Value: cd.Default}
		}
		if cd.References != "" {
			ref, err := parseReference(cd.References)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", td.Name, cd.Name, err)
			}
			col.Reference = ref
		}
		t.Columns = append(t.Columns, col)
	}
	for _, c := range td.UniqueConstraints {
		t.UniqueConstraints = append(t.UniqueConstraints, UniqueConstraint{Name: c.Name, Columns: c.Columns})
	}
	for _, ix := range td.Indexes {
		t.Indexes = append(t.Indexes, Index{Name: ix.Name, Columns: ix.Columns, Unique: ix.Unique})
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
