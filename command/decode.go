package command

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// wireCommand is the loose shape every command map is decoded into first.
// Fields are optional; each command id reads the ones it needs.
type wireCommand struct {
	ID        string `mapstructure:"id"`
	Value     any    `mapstructure:"value"`
	Width     any    `mapstructure:"width"`
	Height    any    `mapstructure:"height"`
	PosX      int    `mapstructure:"posX"`
	PosY      int    `mapstructure:"posY"`
	Reverse   *bool  `mapstructure:"reverse"`
	Underline *bool  `mapstructure:"ul"`
	Emphasis  *bool  `mapstructure:"em"`
	Color     string `mapstructure:"color"`
	Barcode   string `mapstructure:"barcode"`
	Type      any    `mapstructure:"type"`
	Position  any    `mapstructure:"position"`
	Font      string `mapstructure:"font"`
}

type area struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
	W int `mapstructure:"w"`
	H int `mapstructure:"h"`
}

var errUnknownID = errors.New("unknown command id")

// Decode converts the wire command list. It never fails: entries that are
// not maps, carry an unknown id or have malformed fields decode to Skipped
// so the remaining commands keep their relative order.
func Decode(raw []any) []PrintCommand {
	out := make([]PrintCommand, 0, len(raw))
	for i, entry := range raw {
		m, err := cast.ToStringMapE(entry)
		if err != nil {
			out = append(out, Skipped{Reason: fmt.Sprintf("entry %d is not an object", i)})
			continue
		}
		out = append(out, DecodeOne(m))
	}
	return out
}

// DecodeOne converts one command map
func DecodeOne(m map[string]any) PrintCommand {
	var w wireCommand
	if err := decodeStruct(m, &w); err != nil {
		return Skipped{WireID: cast.ToString(m["id"]), Reason: err.Error()}
	}
	cmd, err := w.command()
	if err != nil {
		return Skipped{WireID: w.ID, Reason: err.Error()}
	}
	return cmd
}

func decodeStruct(input any, result any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func (w wireCommand) command() (PrintCommand, error) {
	switch w.ID {
	case IDAppendText:
		if w.Value == nil {
			return nil, errors.New("missing text")
		}
		return AppendText{Text: cast.ToString(w.Value)}, nil

	case IDRawData:
		data, err := rawBytes(w.Value)
		if err != nil {
			return nil, err
		}
		return AppendRawBytes{Data: data}, nil

	case IDImage:
		return w.image()

	case IDFeedLine:
		lines, err := cast.ToIntE(w.Value)
		if err != nil {
			return nil, fmt.Errorf("feed lines: %w", err)
		}
		return FeedLine{Lines: lines}, nil

	case IDLineSpace:
		dots, err := cast.ToIntE(w.Value)
		if err != nil {
			return nil, fmt.Errorf("line space: %w", err)
		}
		return LineSpace{Dots: dots}, nil

	case IDCut:
		return Cut{Mode: ParseCutMode(cast.ToString(w.Value))}, nil

	case IDPageBegin:
		return PageBegin{}, nil

	case IDPageArea:
		var a area
		if err := decodeArea(w.Value, &a); err != nil {
			return nil, err
		}
		return PageArea{X: a.X, Y: a.Y, Width: a.W, Height: a.H}, nil

	case IDPagePosition:
		var a area
		if err := decodeArea(w.Value, &a); err != nil {
			return nil, err
		}
		return PagePosition{X: a.X, Y: a.Y}, nil

	case IDPageEnd:
		return PageEnd{}, nil

	case IDTextAlign:
		return TextAlign{Align: ParseAlign(cast.ToString(w.Value))}, nil

	case IDTextFont:
		return TextFont{Font: ParseFont(cast.ToString(w.Value))}, nil

	case IDTextSmooth:
		smooth, err := cast.ToBoolE(w.Value)
		if err != nil {
			return nil, fmt.Errorf("smooth: %w", err)
		}
		return TextSmooth{Smooth: smooth}, nil

	case IDTextSize:
		width, height, err := w.size()
		if err != nil {
			return nil, fmt.Errorf("text size: %w", err)
		}
		return TextSize{Width: width, Height: height}, nil

	case IDTextStyle:
		return TextStyle{
			Reverse:   w.Reverse,
			Underline: w.Underline,
			Emphasis:  w.Emphasis,
			Color:     ParseColor(w.Color),
		}, nil

	case IDBarcode:
		return w.barcode(), nil

	case IDKick:
		return Kick{}, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownID, w.ID)
}

func (w wireCommand) image() (PrintCommand, error) {
	width, height, err := w.size()
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	encoded, err := cast.ToStringE(w.Value)
	if err != nil {
		return nil, fmt.Errorf("image data: %w", err)
	}
	img, err := DecodeImage(encoded)
	if err != nil {
		return nil, err
	}
	return AppendImage{Image: img, Width: width, Height: height, PosX: w.PosX, PosY: w.PosY}, nil
}

// size reads the required width and height
func (w wireCommand) size() (int, int, error) {
	if w.Width == nil || w.Height == nil {
		return 0, 0, errors.New("needs width and height")
	}
	width, err := cast.ToIntE(w.Width)
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	height, err := cast.ToIntE(w.Height)
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	return width, height, nil
}

func (w wireCommand) barcode() Barcode {
	b := Barcode{
		Data:      w.Barcode,
		Symbology: epos.BarcodeEAN13,
		Position:  epos.HRIBelow,
		Font:      ParseFont(w.Font),
		Width:     DefaultBarcodeWidth,
		Height:    DefaultBarcodeHeight,
	}
	if width, err := cast.ToIntE(w.Width); w.Width != nil && err == nil {
		b.Width = width
	}
	if height, err := cast.ToIntE(w.Height); w.Height != nil && err == nil {
		b.Height = height
	}
	if w.Type != nil {
		b.Symbology = ParseSymbology(w.Type)
	}
	if w.Position != nil {
		b.Position = ParseHRIPosition(w.Position)
	}
	return b
}

func decodeArea(value any, a *area) error {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return fmt.Errorf("area: %w", err)
	}
	return decodeStruct(m, a)
}

// rawBytes accepts a byte slice, a list of byte values or a base64 string
func rawBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("raw data: %w", err)
		}
		return data, nil
	case nil:
		return nil, errors.New("missing raw data")
	}
	ints, err := cast.ToIntSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("raw data: %w", err)
	}
	data := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 0xFF {
			return nil, fmt.Errorf("raw data: byte %d out of range: %d", i, n)
		}
		data[i] = byte(n)
	}
	return data, nil
}

// DecodeImage decodes a base64 PNG, JPEG, BMP or WebP image. A data URL
// prefix is accepted.
func DecodeImage(encoded string) (image.Image, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("image base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode: %w", err)
	}
	return img, nil
}
