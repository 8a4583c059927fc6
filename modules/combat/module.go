// Package combat adds attacks and armor on top of the core module. Dice
// values are written as "2d6" in prefabs; the module ships a handler factory
// that encodes any text-marshalable type that way.
package combat

import (
	"encoding"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/specialistvlad/modenv/internal/module"
	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/zclconf/go-cty/cty"
)

// ID is the module ID in module.hcl.
const ID = "combat"

// Module implements module.Provider for this package.
type Module struct{}

// Dice is a roll such as 2d6+1.
type Dice struct {
	Count int
	Sides int
	Bonus int
}

// NewDiceFrom copies d.
func NewDiceFrom(d Dice) Dice { return Dice{Count: d.Count, Sides: d.Sides, Bonus: d.Bonus} }

func (d Dice) MarshalText() ([]byte, error) {
	s := fmt.Sprintf("%dd%d", d.Count, d.Sides)
	switch {
	case d.Bonus > 0:
		s += "+" + strconv.Itoa(d.Bonus)
	case d.Bonus < 0:
		s += strconv.Itoa(d.Bonus)
	}
	return []byte(s), nil
}

func (d *Dice) UnmarshalText(text []byte) error {
	s := string(text)
	count, rest, ok := strings.Cut(s, "d")
	if !ok {
		return fmt.Errorf("invalid dice %q", s)
	}
	bonus := 0
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		b, err := strconv.Atoi(rest[i:])
		if err != nil {
			return fmt.Errorf("invalid dice bonus in %q: %w", s, err)
		}
		bonus, rest = b, rest[:i]
	}
	c, err := strconv.Atoi(count)
	if err != nil || c <= 0 {
		return fmt.Errorf("invalid dice count in %q", s)
	}
	sides, err := strconv.Atoi(rest)
	if err != nil || sides <= 0 {
		return fmt.Errorf("invalid dice sides in %q", s)
	}
	*d = Dice{Count: c, Sides: sides, Bonus: bonus}
	return nil
}

type AttackComponent struct {
	Damage Dice
	Range  float32
}

type ArmorComponent struct {
	Rating int
	Resist []string
}

type AttackEvent struct {
	Target string
	Roll   Dice
}

// Config is loaded from <config>/combat/combat.hcl.
type Config struct {
	CritMultiplier float64 `hcl:"crit_multiplier,optional"`
}

func (c *Config) SetDefaults() { c.CritMultiplier = 2 }

var (
	textMarshaler   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// TextFactory creates handlers for types that marshal to and from text.
type TextFactory struct {
	logger *slog.Logger
}

// NewTextFactory is the factory's constructor. The logger comes from the
// execution context.
func NewTextFactory(logger *slog.Logger) *TextFactory {
	return &TextFactory{logger: logger}
}

func (f *TextFactory) CreateHandler(t reflect.Type, _ *typehandler.Library) (typehandler.Handler, bool) {
	if t.Kind() == reflect.Pointer || !t.Implements(textMarshaler) || !reflect.PointerTo(t).Implements(textUnmarshaler) {
		return nil, false
	}
	f.logger.Debug("Created text handler.", "type", t.String())
	return textHandler{t: t}, true
}

type textHandler struct {
	t reflect.Type
}

func (h textHandler) Serialize(v any) (cty.Value, error) {
	m, ok := v.(encoding.TextMarshaler)
	if !ok || reflect.TypeOf(v) != h.t {
		return cty.NilVal, fmt.Errorf("%w: want %s, got %T", typehandler.ErrWrongType, h.t, v)
	}
	text, err := m.MarshalText()
	if err != nil {
		return cty.NilVal, err
	}
	return cty.StringVal(string(text)), nil
}

func (h textHandler) Deserialize(v cty.Value) (any, error) {
	ptr := reflect.New(h.t)
	if !v.IsKnown() {
		return nil, fmt.Errorf("decoding %s: %w", h.t, typehandler.ErrUnknownValue)
	}
	if v.IsNull() {
		return ptr.Elem().Interface(), nil
	}
	if v.Type() != cty.String {
		return nil, fmt.Errorf("%s must be a string, got %s", h.t, v.Type().FriendlyName())
	}
	if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(v.AsString())); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// Register declares the module's types.
func (m *Module) Register(r *module.Registrar) {
	r.Component(AttackComponent{})
	r.Component(ArmorComponent{})
	r.Event(AttackEvent{})
	r.Config(Config{}, module.Named("combat"))
	r.CopyConstructible(Dice{}, NewDiceFrom)
	r.TypeHandlerFactory(NewTextFactory)
}
