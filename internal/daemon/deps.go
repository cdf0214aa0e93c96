// SPDX-License-Identifier: MIT

package daemon

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

var (
	ErrMissingLogger         = errors.New("daemon: logger is required")
	ErrMissingAPIHandler     = errors.New("daemon: API handler is required")
	ErrMissingManager        = errors.New("daemon: manager is required")
	ErrManagerNotStarted     = errors.New("daemon: manager not started")
	ErrManagerAlreadyStarted = errors.New("daemon: manager already started")
)

// Deps is what NewManager needs to serve. A disabled logger counts as missing.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler

	// The metrics listener is only opened when both are set.
	MetricsHandler http.Handler
	MetricsAddr    string
}

func (d *Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}

func (d *Deps) metricsEnabled() bool {
	return d.MetricsHandler != nil && d.MetricsAddr != ""
}
