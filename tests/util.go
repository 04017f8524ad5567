package testutil

import (
	"fmt"
	"sync"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/seta/core"
)

// Logger is a core.Logger writing to the test log. Fatal fails the test.
type Logger struct {
	t  testing.TB
	mu sync.Mutex

	Entries []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := level + ": " + msg
	for _, arg := range args {
		entry += fmt.Sprintf(" | %v", arg)
	}
	l.Entries = append(l.Entries, entry)
	l.t.Log(entry)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	l.t.Fatal(msg)
}

// NewValidator returns a validator and translator with the core rules registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	return validate, translator
}

// Session returns a valid session for actor.
func Session(actorID string) core.Session {
	return core.Session{
		ActorID:     actorID,
		Username:    "admin",
		Email:       "admin@seta.test",
		Credentials: "token-" + actorID,
	}
}
