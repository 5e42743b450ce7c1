package bacnet

import (
	"go.uber.org/zap/zapcore"
)

type DateTimeMarshaler struct {
	DT *DateTime
}

func (m DateTimeMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("date", m.DT.Date.String())
	enc.AddString("time", m.DT.Time.String())
	return nil
}
