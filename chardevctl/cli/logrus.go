// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/mychardev/mychardev/pkg/log"
	"github.com/sirupsen/logrus"
)

// logrusEmitter implements log.Emitter on top of a logrus.Logger, for hosts
// that already collect logrus-formatted output.
type logrusEmitter struct {
	logger *logrus.Logger
}

func newLogrusEmitter(w io.Writer) *logrusEmitter {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	return &logrusEmitter{logger: l}
}

// Emit implements log.Emitter.Emit. Level filtering is done by the
// log.BasicLogger in front of the emitter.
func (e *logrusEmitter) Emit(_ int, level log.Level, timestamp time.Time, format string, v ...any) {
	entry := e.logger.WithTime(timestamp)
	msg := fmt.Sprintf(format, v...)
	switch level {
	case log.Alert:
		entry.Error(msg)
	case log.Warning:
		entry.Warn(msg)
	case log.Info:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}
