package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return jx.DecodeBytes(buf), nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(n))
}

// decodeOptStr decodes a string that may be null or a number.
func decodeOptStr(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		return string(n), err
	default:
		return d.Str()
	}
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.InexactFloat64())
}

// cartLine is one cart row of a pricing preview request.
type cartLine struct {
	ProductID  string
	TenantID   string
	CategoryID string
	Variant    string
	Price      decimal.Decimal
	Quantity   int
}

func decodeCartLines(d *jx.Decoder) ([]cartLine, error) {
	var lines []cartLine
	err := d.Arr(func(d *jx.Decoder) error {
		l, err := decodeCartLine(d)
		if err != nil {
			return errors.Wrapf(err, "item %d", len(lines))
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func decodeCartLine(d *jx.Decoder) (cartLine, error) {
	var l cartLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "id":
					l.ProductID, err = decodeOptStr(d)
				case "tenantId":
					l.TenantID, err = decodeOptStr(d)
				case "categoryId":
					l.CategoryID, err = decodeOptStr(d)
				default:
					err = d.Skip()
				}
				return err
			})
		case "price":
			l.Price, err = decodeDecimal(d)
		case "quantity":
			l.Quantity, err = d.Int()
		case "variant":
			l.Variant, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return l, err
	}
	if l.ProductID == "" {
		return l, errors.New("product id required")
	}
	if l.Price.IsNegative() {
		return l, errors.Errorf("price of product %s must not be negative", l.ProductID)
	}
	return l, nil
}
