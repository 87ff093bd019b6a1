// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

const MaxLogLevel = logrus.TraceLevel

func init() {
	logger = logrus.New()
}

// SetLogger replaces the package default logger. Handles opened with an
// explicit StLinkConfig.Logger keep using that one.
func SetLogger(loggerInstance *logrus.Logger) {
	if loggerInstance != nil {
		logger = loggerInstance
	}
}

func handleLogger(l *logrus.Logger, fields logrus.Fields) *logrus.Entry {
	if l == nil {
		l = logger
	}

	return l.WithFields(fields)
}
