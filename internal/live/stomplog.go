package live

import (
	"fmt"

	"github.com/go-stomp/stomp/v3"

	"taskboard/internal/logging"
)

// StompLogger routes go-stomp diagnostics through log instead of the
// standard library logger.
func StompLogger(log *logging.Logger) stomp.Logger {
	if log == nil {
		log = logging.NopLogger()
	}
	return stompLogger{log: log.WithComponent("stomp")}
}

type stompLogger struct {
	log *logging.Logger
}

func (l stompLogger) Debugf(format string, v ...interface{}) { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l stompLogger) Infof(format string, v ...interface{})  { l.log.Info(fmt.Sprintf(format, v...)) }
func (l stompLogger) Warningf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...))
}
func (l stompLogger) Errorf(format string, v ...interface{}) { l.log.Error(fmt.Sprintf(format, v...)) }

func (l stompLogger) Debug(msg string)   { l.log.Debug(msg) }
func (l stompLogger) Info(msg string)    { l.log.Info(msg) }
func (l stompLogger) Warning(msg string) { l.log.Warn(msg) }
func (l stompLogger) Error(msg string)   { l.log.Error(msg) }
