package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	logx "github.com/smartselect/shortlist/pkg/logger"
)

// zerologAdapter routes watermill's internal logging through logx.
type zerologAdapter struct {
	fields watermill.LogFields
}

func NewLogger() watermill.LoggerAdapter {
	return &zerologAdapter{}
}

func (l *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.apply(logx.Error().Err(err), fields).Msg(msg)
}

func (l *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	// watermill is chatty at info level; keep it out of normal output
	l.apply(logx.Debug(), fields).Msg(msg)
}

func (l *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	l.apply(logx.Debug(), fields).Msg(msg)
}

func (l *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	l.apply(logx.Trace(), fields).Msg(msg)
}

func (l *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zerologAdapter{fields: l.fields.Add(fields)}
}

func (l *zerologAdapter) apply(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	return e.Fields(map[string]interface{}(l.fields.Add(fields)))
}
