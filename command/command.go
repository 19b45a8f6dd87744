// Package command holds the print-command instruction set: typed variants,
// a decoder for the loosely typed wire form and the translator that applies
// them to an open job buffer.
package command

import (
	"image"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// Wire command ids
const (
	IDAppendText   = "appendText"
	IDRawData      = "printRawData"
	IDImage        = "addImage"
	IDFeedLine     = "addFeedLine"
	IDLineSpace    = "addLineSpace"
	IDCut          = "addCut"
	IDPageBegin    = "addPageBegin"
	IDPageArea     = "addPageArea"
	IDPagePosition = "addPagePosition"
	IDPageEnd      = "addPageEnd"
	IDTextAlign    = "addTextAlign"
	IDTextFont     = "addTextFont"
	IDTextSmooth   = "addTextSmooth"
	IDTextSize     = "addTextSize"
	IDTextStyle    = "addTextStyle"
	IDBarcode      = "addBarcode"
	IDKick         = "addKick"
)

// Barcode defaults applied when a field is absent
const (
	DefaultBarcodeWidth  = 2
	DefaultBarcodeHeight = 100
)

// PrintCommand is one entry of an ordered print job
type PrintCommand interface {
	// ID is the wire id the command was decoded from
	ID() string
}

type AppendText struct {
	Text string
}

type AppendRawBytes struct {
	Data []byte
}

type AppendImage struct {
	Image  image.Image
	Width  int
	Height int
	PosX   int
	PosY   int
}

type FeedLine struct {
	Lines int
}

type LineSpace struct {
	Dots int
}

type Cut struct {
	Mode epos.CutMode
}

type PageBegin struct{}

type PageArea struct {
	X, Y, Width, Height int
}

type PagePosition struct {
	X, Y int
}

type PageEnd struct{}

type TextAlign struct {
	Align epos.Align
}

type TextFont struct {
	Font epos.Font
}

type TextSmooth struct {
	Smooth bool
}

type TextSize struct {
	Width, Height int
}

// TextStyle leaves nil attributes at their current device setting
type TextStyle struct {
	Reverse   *bool
	Underline *bool
	Emphasis  *bool
	Color     epos.Color
}

type Barcode struct {
	Data      string
	Symbology epos.Symbology
	Position  epos.HRIPosition
	Font      epos.Font
	Width     int
	Height    int
}

// Kick opens the cash drawer
type Kick struct{}

// Skipped stands in for an entry that could not be decoded. It is applied
// as a no-op so the rest of the job still prints.
type Skipped struct {
	WireID string
	Reason string
}

func (AppendText) ID() string     { return IDAppendText }
func (AppendRawBytes) ID() string { return IDRawData }
func (AppendImage) ID() string    { return IDImage }
func (FeedLine) ID() string       { return IDFeedLine }
func (LineSpace) ID() string      { return IDLineSpace }
func (Cut) ID() string            { return IDCut }
func (PageBegin) ID() string      { return IDPageBegin }
func (PageArea) ID() string       { return IDPageArea }
func (PagePosition) ID() string   { return IDPagePosition }
func (PageEnd) ID() string        { return IDPageEnd }
func (TextAlign) ID() string      { return IDTextAlign }
func (TextFont) ID() string       { return IDTextFont }
func (TextSmooth) ID() string     { return IDTextSmooth }
func (TextSize) ID() string       { return IDTextSize }
func (TextStyle) ID() string      { return IDTextStyle }
func (Barcode) ID() string        { return IDBarcode }
func (Kick) ID() string           { return IDKick }
func (s Skipped) ID() string      { return s.WireID }
