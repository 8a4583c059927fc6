package inject

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now int }

type store struct{ name string }

type service struct {
	clock *clock
	Store *store `inject:""`
	Extra *int   `inject:"optional"`
	Plain string
}

type mapSource map[reflect.Type]any

func (m mapSource) Lookup(t reflect.Type) (any, bool) {
	v, ok := m[t]
	return v, ok
}

func newService(c *clock) *service { return &service{clock: c} }

func TestCreate(t *testing.T) {
	c := &clock{now: 7}
	s := &store{name: "main"}
	src := mapSource{
		reflect.TypeFor[*clock](): c,
		reflect.TypeFor[*store](): s,
	}

	got, err := Create(newService, src)
	require.NoError(t, err)
	svc := got.(*service)
	assert.Same(t, c, svc.clock)
	assert.Same(t, s, svc.Store)
	assert.Nil(t, svc.Extra)
}

func TestCreateMissingConstructorDependency(t *testing.T) {
	_, err := Create(newService, mapSource{})
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestCreateMissingFieldDependency(t *testing.T) {
	src := mapSource{reflect.TypeFor[*clock](): &clock{}}
	_, err := Create(newService, src)
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "Store")
}

func TestCreateConstructorError(t *testing.T) {
	boom := errors.New("boom")
	_, err := CreateWithConstructorInjection(func() (*store, error) { return nil, boom }, mapSource{})
	require.ErrorIs(t, err, boom)

	_, err = CreateWithConstructorInjection(42, mapSource{})
	require.ErrorIs(t, err, ErrNotConstructor)
}

func TestInjectRejectsNonStructPointers(t *testing.T) {
	n := 3
	assert.ErrorIs(t, Inject(&n, mapSource{}), ErrNotInjectable)
	assert.ErrorIs(t, Inject(service{}, mapSource{}), ErrNotInjectable)

	type hiddenDep struct {
		s *store `inject:""`
	}
	assert.ErrorIs(t, Inject(&hiddenDep{}, mapSource{}), ErrNotInjectable)
}
