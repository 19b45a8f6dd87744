package command

import (
	"log"
	"os"

	"github.com/nixxel-company-limited/epos-bridge/printer"
)

// Translator applies decoded commands to an open job buffer
type Translator struct {
	logger *log.Logger
}

// NewTranslator creates a translator with the default logger
func NewTranslator() *Translator {
	logger := log.New(os.Stdout, "[COMMAND] ", log.LstdFlags|log.Lmsgprefix)
	return NewTranslatorWithLogger(logger)
}

// NewTranslatorWithLogger creates a translator with a custom logger
func NewTranslatorWithLogger(logger *log.Logger) *Translator {
	return &Translator{logger: logger}
}

// Apply appends one command to job. Skipped commands and device errors are
// logged; they never fail the job.
func (t *Translator) Apply(job printer.Builder, cmd PrintCommand) {
	if err := apply(job, cmd); err != nil {
		t.logger.Printf("Error applying %s: %v", cmd.ID(), err)
	}
	if s, ok := cmd.(Skipped); ok {
		t.logger.Printf("Skipping command %q: %s", s.WireID, s.Reason)
	}
}

// ApplyAll applies commands in order
func (t *Translator) ApplyAll(job printer.Builder, cmds []PrintCommand) {
	for _, cmd := range cmds {
		t.Apply(job, cmd)
	}
}

func apply(job printer.Builder, cmd PrintCommand) error {
	switch c := cmd.(type) {
	case AppendText:
		return job.AddText(c.Text)
	case AppendRawBytes:
		return job.AddCommand(c.Data)
	case AppendImage:
		return job.AddImage(c.Image, c.PosX, c.PosY, c.Width, c.Height)
	case FeedLine:
		return job.AddFeedLine(c.Lines)
	case LineSpace:
		return job.AddLineSpace(c.Dots)
	case Cut:
		return job.AddCut(c.Mode)
	case PageBegin:
		return job.AddPageBegin()
	case PageArea:
		return job.AddPageArea(c.X, c.Y, c.Width, c.Height)
	case PagePosition:
		return job.AddPagePosition(c.X, c.Y)
	case PageEnd:
		return job.AddPageEnd()
	case TextAlign:
		return job.AddTextAlign(c.Align)
	case TextFont:
		return job.AddTextFont(c.Font)
	case TextSmooth:
		return job.AddTextSmooth(c.Smooth)
	case TextSize:
		return job.AddTextSize(c.Width, c.Height)
	case TextStyle:
		return job.AddTextStyle(c.Reverse, c.Underline, c.Emphasis, c.Color)
	case Barcode:
		return job.AddBarcode(c.Data, c.Symbology, c.Position, c.Font, c.Width, c.Height)
	case Kick:
		return job.AddCommand(printer.KickCommand)
	}
	return nil
}
