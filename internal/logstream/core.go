package logstream

import (
	"go.uber.org/zap/zapcore"
)

// core is a zapcore.Core that publishes entries to a Broker.
type core struct {
	zapcore.LevelEnabler
	broker *Broker
	fields []zapcore.Field
}

// NewCore returns a zapcore.Core publishing every enabled entry to b.
// Tee it into an existing logger with utils.Tee.
func NewCore(b *Broker, level zapcore.LevelEnabler) zapcore.Core {
	return &core{LevelEnabler: level, broker: b}
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	e := Event{
		Timestamp: ent.Time,
		Level:     ent.Level.String(),
		Message:   ent.Message,
	}
	if len(enc.Fields) > 0 {
		e.Fields = enc.Fields
	}
	c.broker.Publish(e)
	return nil
}

func (c *core) Sync() error {
	return nil
}
