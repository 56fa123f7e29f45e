package strategy

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/MJE43/berghain-runner-go/internal/berghain"
)

// ScriptFile is the per-scenario custom policy file, looked up in the
// scenario directory.
const ScriptFile = "strategy.js"

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// Script adapts a user-provided JavaScript policy to the Decider
// interface. The script must define decide(person, state) and return a
// truthy value to admit. person carries personIndex and attributes;
// state mirrors State including counts, constraints, frequencies,
// and correlations.
type Script struct {
	runtime *goja.Runtime
	mu      sync.Mutex
	logger  *log.Logger
}

// NewScript compiles a policy script in a sandboxed runtime.
func NewScript(source string, logger *log.Logger) (*Script, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[script] ", log.LstdFlags)
	}
	s := &Script{
		runtime: goja.New(),
		logger:  logger,
	}
	s.injectGlobals()

	if err := s.runWithTimeout(scriptInitTimeout, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, err := s.runtime.RunString(source); err != nil {
			return fmt.Errorf("strategy: script load: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	fn := s.runtime.Get("decide")
	if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
		return nil, fmt.Errorf("strategy: script does not define decide()")
	}
	if _, ok := goja.AssertFunction(fn); !ok {
		return nil, fmt.Errorf("strategy: decide is not a function")
	}
	return s, nil
}

// LoadScript reads and compiles a policy script from disk.
func LoadScript(path string, logger *log.Logger) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("strategy: read script: %w", err)
	}
	return NewScript(string(src), logger)
}

// injectGlobals registers log and console.log and blocks runtime escape
// hatches.
func (s *Script) injectGlobals() {
	s.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		s.logger.Print(strings.Join(parts, " "))
		return goja.Undefined()
	})

	console := s.runtime.NewObject()
	console.Set("log", s.runtime.Get("log"))
	s.runtime.Set("console", console)

	s.runtime.Set("require", goja.Undefined())
	s.runtime.Set("fetch", goja.Undefined())
	s.runtime.Set("XMLHttpRequest", goja.Undefined())
	s.runtime.Set("eval", goja.Undefined())
	s.runtime.Set("Function", goja.Undefined())
}

// Decide implements Decider by calling the script's decide() function.
func (s *Script) Decide(person berghain.Person, st *State) (bool, error) {
	var accept bool
	err := s.runWithTimeout(scriptCallTimeout, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		fn, ok := goja.AssertFunction(s.runtime.Get("decide"))
		if !ok {
			return fmt.Errorf("strategy: decide is not a function")
		}

		personArg := map[string]any{
			"personIndex": person.PersonIndex,
			"attributes":  person.Attributes,
		}
		constraints := make([]map[string]any, len(st.Constraints))
		for i, c := range st.Constraints {
			constraints[i] = map[string]any{
				"attribute": c.Attribute,
				"minCount":  c.MinCount,
			}
		}
		stateArg := map[string]any{
			"admitted":      st.Admitted,
			"rejected":      st.Rejected,
			"capacity":      st.Capacity,
			"maxRejections": st.MaxRejections,
			"fillRatio":     st.FillRatio(),
			"counts":        st.Counts,
			"constraints":   constraints,
			"frequencies":   st.Stats.RelativeFrequencies,
			"correlations":  st.Stats.Correlations,
		}

		result, err := fn(goja.Undefined(), s.runtime.ToValue(personArg), s.runtime.ToValue(stateArg))
		if err != nil {
			return fmt.Errorf("strategy: decide(): %w", err)
		}
		accept = result.ToBoolean()
		return nil
	})
	return accept, err
}

func (s *Script) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		// Interrupt a runaway script execution.
		s.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("strategy: script timed out: %w", err)
			}
			return fmt.Errorf("strategy: script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("strategy: script timed out")
		}
	}
}
