package metatype

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jinzhu/inflection"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// MaxTypeNameLength bounds registered type names.
const MaxTypeNameLength = 20

var (
	typeNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
	prefixPattern   = regexp.MustCompile(`^[A-Za-z0-9_]*$`)
)

// Config holds the table prefixes applied at registration.
type Config struct {
	// Prefix is prepended to partition scoped tables.
	Prefix string `mapstructure:"prefix"`
	// BasePrefix is prepended to tables registered with Options.Global.
	BasePrefix string `mapstructure:"base_prefix"`
}

// DefaultConfig returns a configuration without prefixes.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks the prefixes are safe to concatenate into identifiers.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Prefix, validation.Match(prefixPattern)),
		validation.Field(&c.BasePrefix, validation.Match(prefixPattern)),
	)
}

// Options customise a registration. Zero values are replaced by defaults
// derived from the type name.
type Options struct {
	Global    bool
	TableName string
	Columns   Columns
	Labels    Labels
	EditLink  EditLinkFunc
}

// Event is delivered to observers after every successful registration.
type Event struct {
	ObjectType string
	Descriptor *Descriptor
	// Replaced is true when the registration overwrote an earlier one.
	Replaced bool
}

// Observer receives registration events. Return values are not consumed.
type Observer func(Event)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry maps object type names to descriptors. Registration is expected
// to finish before the first query, but lookups are safe at any time.
type Registry struct {
	cfg    Config
	types  *xsync.MapOf[string, *Descriptor]
	logger *zap.Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("metatype: invalid config: %w", err)
	}

	r := &Registry{
		cfg:    cfg,
		types:  xsync.NewMapOf[string, *Descriptor](),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ValidateTypeName reports whether name can be registered.
func ValidateTypeName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, MaxTypeNameLength),
		validation.Match(typeNamePattern).Error("must contain only lowercase letters, digits, dashes and underscores"),
	)
	if err != nil {
		return &InvalidTypeNameError{Name: name, Reason: err.Error()}
	}
	return nil
}

// Register validates objectType, applies defaults and stores the descriptor.
// A second registration of the same name replaces the first.
func (r *Registry) Register(objectType string, opts Options) (*Descriptor, error) {
	if err := ValidateTypeName(objectType); err != nil {
		return nil, err
	}

	d := r.build(objectType, opts)

	if err := validation.Validate(d.TableName, validation.Required, validation.Match(identPattern)); err != nil {
		return nil, fmt.Errorf("%w: table name %q: %v", ErrInvalidOptions, d.TableName, err)
	}
	if err := d.Columns.Validate(); err != nil {
		return nil, fmt.Errorf("%w: columns: %v", ErrInvalidOptions, err)
	}

	_, replaced := r.types.Load(objectType)
	r.types.Store(objectType, d)

	r.logger.Debug("meta type registered",
		zap.String("object_type", objectType),
		zap.String("table", d.TableName),
		zap.Bool("replaced", replaced),
	)

	r.notify(Event{ObjectType: objectType, Descriptor: d.clone(), Replaced: replaced})
	return d.clone(), nil
}

func (r *Registry) build(objectType string, opts Options) *Descriptor {
	table := opts.TableName
	if table == "" {
		table = objectType + "meta"
	}

	prefix := r.cfg.Prefix
	if opts.Global {
		prefix = r.cfg.BasePrefix
	}

	columns := opts.Columns.merge(Columns{
		MetaID:    string(RoleMetaID),
		ObjectID:  objectType + "_id",
		MetaKey:   string(RoleMetaKey),
		MetaValue: string(RoleMetaValue),
	})

	labels := opts.Labels
	if labels.Singular == "" {
		labels.Singular = defaultSingular(objectType)
	}
	if labels.Plural == "" {
		labels.Plural = inflection.Plural(labels.Singular)
	}

	return &Descriptor{
		ObjectType: objectType,
		TableName:  prefix + table,
		Columns:    columns,
		Labels:     labels,
		Global:     opts.Global,
		EditLink:   opts.EditLink,
	}
}

func defaultSingular(objectType string) string {
	words := strings.Split(objectType, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Get returns a copy of the descriptor registered under objectType.
func (r *Registry) Get(objectType string) (*Descriptor, bool) {
	d, ok := r.types.Load(objectType)
	if !ok {
		return nil, false
	}
	return d.clone(), true
}

// Lookup is Get with an ErrUnknownType error for absent types.
func (r *Registry) Lookup(objectType string) (*Descriptor, error) {
	d, ok := r.Get(objectType)
	if !ok {
		return nil, UnknownTypeError(objectType)
	}
	return d, nil
}

// Operator combines the conditions of a Match.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
	OperatorNot Operator = "NOT"
)

// Match filters descriptors by attribute. Recognised field names are
// object_type, table_name, global, singular and plural. An empty Match
// selects every descriptor.
type Match struct {
	Fields   map[string]string
	Operator Operator
}

func (m Match) matches(d *Descriptor) bool {
	if len(m.Fields) == 0 {
		return true
	}

	hits := 0
	for field, want := range m.Fields {
		if got, ok := attribute(d, field); ok && got == want {
			hits++
		}
	}

	switch strings.ToUpper(string(m.Operator)) {
	case string(OperatorOr):
		return hits > 0
	case string(OperatorNot):
		return hits == 0
	default:
		return hits == len(m.Fields)
	}
}

func attribute(d *Descriptor, field string) (string, bool) {
	switch field {
	case "object_type", "name":
		return d.ObjectType, true
	case "table_name":
		return d.TableName, true
	case "global":
		return strconv.FormatBool(d.Global), true
	case "singular":
		return d.Labels.Singular, true
	case "plural":
		return d.Labels.Plural, true
	}
	return "", false
}

// List returns copies of the descriptors selected by m, sorted by type name.
func (r *Registry) List(m Match) []*Descriptor {
	var out []*Descriptor
	r.types.Range(func(_ string, d *Descriptor) bool {
		if m.matches(d) {
			out = append(out, d.clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectType < out[j].ObjectType })
	return out
}

// Names is List returning only the type names.
func (r *Registry) Names(m Match) []string {
	list := r.List(m)
	names := make([]string, len(list))
	for i, d := range list {
		names[i] = d.ObjectType
	}
	return names
}

// Subscribe adds an observer for subsequent registrations.
func (r *Registry) Subscribe(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *Registry) notify(e Event) {
	r.mu.RLock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()

	for _, o := range observers {
		o(e)
	}
}

// Plugin registers a group of types during startup.
type Plugin struct {
	Name     string
	Register func(*Registry) error
}

// Bootstrap runs plugins in order. A failing plugin does not stop the ones
// after it; all failures are returned joined.
func (r *Registry) Bootstrap(plugins ...Plugin) error {
	var errs []error
	for _, p := range plugins {
		if p.Register == nil {
			continue
		}
		if err := p.Register(r); err != nil {
			r.logger.Warn("meta type plugin failed", zap.String("plugin", p.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}
