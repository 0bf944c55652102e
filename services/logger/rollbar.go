package logsvc

import (
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unistock/stockroom/core"
)

// RollbarLogger reports messages to rollbar and writes them locally through zap.
type RollbarLogger struct {
	zap *zap.SugaredLogger

	// rollbar's person is global state
	mu sync.Mutex
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZap builds the local logger: JSON production output, human readable debug output in DEBUG.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	if conf.Debug {
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return zc.Build(zap.AddCallerSkip(1))
	}
	zc := zap.NewProductionConfig()
	zc.InitialFields = map[string]interface{}{"app": conf.AppName, "env": conf.Env, "build": conf.Build}
	return zc.Build(zap.AddCallerSkip(1))
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug)
	return &RollbarLogger{zap: zl.Sugar()}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes both sinks.
func (l *RollbarLogger) Sync() {
	rollbar.Wait()
	_ = l.zap.Sync()
}

type personer interface {
	Person() core.Person
}

// prepare splits args into the rollbar arguments and the zap key-value pairs.
// expected args: error, map[string]interface{}, core.Person or anything with a Person() method
func (l *RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, fields []interface{}, person *core.Person) {
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case core.Person:
			if person == nil {
				person = &a
			}
		case personer:
			if person == nil {
				p := a.Person()
				person = &p
			}
		case error:
			rbArgs = append(rbArgs, a)
			fields = append(fields, "error", a.Error())
		case map[string]interface{}:
			rbArgs = append(rbArgs, a)
			for k, v := range a {
				fields = append(fields, k, v)
			}
		default:
			rbArgs = append(rbArgs, a)
			fields = append(fields, "arg", a)
		}
	}
	if person != nil {
		fields = append(fields, "user_id", person.ID, "username", person.Username)
	}
	return rbArgs, fields, person
}

func (l *RollbarLogger) report(level string, msg string, args []interface{}) []interface{} {
	rbArgs, fields, person := l.prepare(msg, args)

	l.mu.Lock()
	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, rbArgs...)
	l.mu.Unlock()

	return fields
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	fields := l.report(rollbar.DEBUG, msg, args)
	l.zap.Debugw(msg, fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	fields := l.report(rollbar.INFO, msg, args)
	l.zap.Infow(msg, fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	fields := l.report(rollbar.WARN, msg, args)
	l.zap.Warnw(msg, fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	fields := l.report(rollbar.ERR, msg, args)
	l.zap.Errorw(msg, fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	fields := l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.zap.Fatalw(msg, fields...)
}
