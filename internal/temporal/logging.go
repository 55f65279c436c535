package temporal

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// sdkLogger routes Temporal SDK logs through zerolog so worker output shares
// the application's log format.
type sdkLogger struct {
	logger zerolog.Logger
}

func NewTemporalAdapter(logger zerolog.Logger) log.Logger {
	return &sdkLogger{
		logger: logger.With().Str("component", "temporal-sdk").Logger(),
	}
}

func (l *sdkLogger) Debug(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Debug(), msg, keyvals)
}

func (l *sdkLogger) Info(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Info(), msg, keyvals)
}

func (l *sdkLogger) Warn(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Warn(), msg, keyvals)
}

func (l *sdkLogger) Error(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Error(), msg, keyvals)
}

// emit folds the SDK's loosely typed key/value pairs into zerolog fields. A
// trailing key without a value is logged under "extra"; non-string keys are
// stringified rather than dropped.
func (l *sdkLogger) emit(event *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		event = event.Interface(key, keyvals[i+1])
	}
	if len(keyvals)%2 != 0 {
		event = event.Interface("extra", keyvals[len(keyvals)-1])
	}
	event.Msg(msg)
}
