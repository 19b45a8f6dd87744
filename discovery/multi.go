package discovery

import (
	"context"
	"errors"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// Multi runs several scanners as one. Start fails only when every scanner
// fails.
type Multi []Scanner

func (m Multi) Start(ctx context.Context, filter epos.PortType, found FoundFunc) error {
	var errs []error
	for _, s := range m {
		if err := s.Start(ctx, filter, found); err != nil {
			errs = append(errs, err)
		}
	}
	if len(m) > 0 && len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}

func (m Multi) Stop() error {
	var errs []error
	for _, s := range m {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
