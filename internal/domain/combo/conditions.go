package combo

import (
	"bytes"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// evalConditions runs a JSON-logic rule against the cart facts. The rule
// sees cartTotal, itemCount and lineCount.
func evalConditions(rule []byte, f cartFacts) (bool, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("cartTotal", func(e *jx.Encoder) { e.Float64(f.CartTotal.InexactFloat64()) })
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(f.ItemCount) })
		e.Field("lineCount", func(e *jx.Encoder) { e.Int(f.LineCount) })
	})

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(rule), bytes.NewReader(e.Bytes()), &out); err != nil {
		return false, errors.Wrap(err, "evaluate conditions")
	}
	ok, err := truthy(jx.DecodeBytes(bytes.TrimSpace(out.Bytes())))
	if err != nil {
		return false, errors.Wrap(err, "decode conditions result")
	}
	return ok, nil
}

// truthy applies JSON-logic truthiness: false, null, 0, "" and [] are false.
func truthy(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.Null:
		return false, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return false, err
		}
		v, err := n.Float64()
		if err != nil {
			return false, err
		}
		return v != 0, nil
	case jx.String:
		s, err := d.Str()
		return s != "", err
	case jx.Array:
		count := 0
		err := d.Arr(func(d *jx.Decoder) error {
			count++
			return d.Skip()
		})
		return count > 0, err
	case jx.Object:
		return true, d.Skip()
	default:
		return false, errors.New("empty result")
	}
}
