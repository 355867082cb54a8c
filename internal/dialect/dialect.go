// Package dialect supplies the SQL text a provider needs: statement
// templates with {0}..{n} positional substitution for table names, column
// types and batching limits.
//
// Dialects are configuration, not code. Each one is a YAML file under
// templates/ embedded into the binary and loaded into a Provider.
package dialect

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/schema"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Templates maps a command name to its SQL text.
type Templates map[string]string

// Sql returns the raw template for name.
func (t Templates) Sql(name string) (string, error) {
	s, ok := t[name]
	if !ok {
		return "", fmt.Errorf("no sql template %q", name)
	}
	return s, nil
}

var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// Format returns the template for name with {i} replaced by args[i].
func (t Templates) Format(name string, args ...any) (string, error) {
	s, err := t.Sql(name)
	if err != nil {
		return "", err
	}
	return Substitute(s, args...)
}

// MustFormat is like Format but panics on error.
// Use only with templates known to exist.
func (t Templates) MustFormat(name string, args ...any) string {
	s, err := t.Format(name, args...)
	if err != nil {
		panic(err)
	}
	return s
}

// Substitute replaces {i} in s with args[i].
func Substitute(s string, args ...any) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		i, _ := strconv.Atoi(m[1 : len(m)-1])
		if i >= len(args) {
			missing = append(missing, m)
			return m
		}
		return fmt.Sprint(args[i])
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: missing arguments for %s", s, strings.Join(missing, ", "))
	}
	return out, nil
}

// Provider is the configuration of one dialect.
type Provider struct {
	Name string
	// MaxBatchedIdsSize bounds the ids bound into one IN (...) list.
	MaxBatchedIdsSize int
	Templates         Templates

	idTypes      map[ids.Kind]string
	payloadTypes map[string]string
	columnTypes  map[schema.DataTypeCode]string
}

type providerFile struct {
	Name              string            `yaml:"name"`
	MaxBatchedIdsSize int               `yaml:"max_batched_ids_size"`
	IDTypes           map[string]string `yaml:"id_types"`
	PayloadTypes      map[string]string `yaml:"payload_types"`
	ColumnTypes       map[string]string `yaml:"column_types"`
	Templates         map[string]string `yaml:"templates"`
}

// Names lists the embedded dialects.
func Names() []string {
	entries, _ := templateFS.ReadDir("templates")
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

// Load reads an embedded dialect. A positive maxBatchedIdsSize overrides
// the dialect default.
func Load(name string, maxBatchedIdsSize int) (*Provider, error) {
	data, err := templateFS.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown dialect %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return Parse(data, maxBatchedIdsSize)
}

// Parse reads a dialect definition.
func Parse(data []byte, maxBatchedIdsSize int) (*Provider, error) {
	var f providerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dialect: %w", err)
	}
	p := &Provider{
		Name:              f.Name,
		MaxBatchedIdsSize: f.MaxBatchedIdsSize,
		Templates:         Templates(f.Templates),
		idTypes:           make(map[ids.Kind]string, len(f.IDTypes)),
		payloadTypes:      f.PayloadTypes,
		columnTypes:       make(map[schema.DataTypeCode]string, len(f.ColumnTypes)),
	}
	if maxBatchedIdsSize > 0 {
		p.MaxBatchedIdsSize = maxBatchedIdsSize
	}
	if p.MaxBatchedIdsSize <= 0 {
		return nil, fmt.Errorf("dialect %s: max_batched_ids_size must be positive", f.Name)
	}
	for k, v := range f.IDTypes {
		kind, err := ids.ParseKind(k)
		if err != nil {
			return nil, fmt.Errorf("dialect %s: %w", f.Name, err)
		}
		p.idTypes[kind] = v
	}
	for k, v := range f.ColumnTypes {
		code, err := schema.ParseDataTypeCode(k)
		if err != nil {
			return nil, fmt.Errorf("dialect %s: %w", f.Name, err)
		}
		p.columnTypes[code] = v
	}
	for _, code := range schema.AllDataTypeCodes {
		if _, ok := p.columnTypes[code]; !ok {
			return nil, fmt.Errorf("dialect %s: no column type for %s", f.Name, code)
		}
	}
	return p, nil
}

// IDType returns the column type of StructureId for kind.
func (p *Provider) IDType(kind ids.Kind) (string, error) {
	t, ok := p.idTypes[kind]
	if !ok {
		return "", fmt.Errorf("dialect %s: no id type for %s", p.Name, kind)
	}
	return t, nil
}

// PayloadType returns the Json column type for a serializer name.
func (p *Provider) PayloadType(serializer string) (string, error) {
	t, ok := p.payloadTypes[serializer]
	if !ok {
		return "", fmt.Errorf("dialect %s: no payload type for serializer %s", p.Name, serializer)
	}
	return t, nil
}

// ColumnType returns the Value column type of the index table for code.
func (p *Provider) ColumnType(code schema.DataTypeCode) (string, error) {
	t, ok := p.columnTypes[code]
	if !ok {
		return "", &schema.DataTypeRoutingError{DataType: code}
	}
	return t, nil
}
