/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"
)

const logFormat = "%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module} %{shortfile}: %{message}"

// InitLog sends the log of every module to stderr at the given level.
func InitLog(level string) error {
	return initLog(os.Stderr, level)
}

func initLog(w io.Writer, level string) error {
	lv, err := logging.LogLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level: %v", level)
	}

	backend := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(logFormat))
	leveled := logging.AddModuleLevel(formatted)
	// An empty module name sets the default for all modules.
	leveled.SetLevel(lv, "")
	logging.SetBackend(leveled)

	return nil
}
