package combat

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/specialistvlad/modenv/internal/typehandler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestDiceText(t *testing.T) {
	testCases := []struct {
		in   string
		want Dice
	}{
		{"1d6", Dice{Count: 1, Sides: 6}},
		{"2d8+3", Dice{Count: 2, Sides: 8, Bonus: 3}},
		{"3d4-1", Dice{Count: 3, Sides: 4, Bonus: -1}},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			var d Dice
			require.NoError(t, d.UnmarshalText([]byte(tc.in)))
			assert.Equal(t, tc.want, d)

			text, err := d.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tc.in, string(text))
		})
	}

	for _, bad := range []string{"", "d6", "2x6", "0d6", "2d0", "2d6+x"} {
		var d Dice
		assert.Error(t, d.UnmarshalText([]byte(bad)), bad)
	}
}

func TestTextFactory(t *testing.T) {
	f := NewTextFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, ok := f.CreateHandler(reflect.TypeFor[int](), nil)
	assert.False(t, ok)
	_, ok = f.CreateHandler(reflect.TypeFor[*Dice](), nil)
	assert.False(t, ok)

	h, ok := f.CreateHandler(reflect.TypeFor[Dice](), nil)
	require.True(t, ok)

	v, err := h.Serialize(Dice{Count: 1, Sides: 20})
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("1d20"), v)

	got, err := h.Deserialize(cty.StringVal("4d6+2"))
	require.NoError(t, err)
	assert.Equal(t, Dice{Count: 4, Sides: 6, Bonus: 2}, got)

	_, err = h.Serialize("1d20")
	require.ErrorIs(t, err, typehandler.ErrWrongType)
	_, err = h.Deserialize(cty.NumberIntVal(3))
	require.Error(t, err)
}

func TestNewDiceFrom(t *testing.T) {
	d := Dice{Count: 2, Sides: 10, Bonus: 1}
	assert.Equal(t, d, NewDiceFrom(d))
}
