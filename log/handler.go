package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type Handler interface {
	Log(r *Record) error
}

type funcHandler func(r *Record) error

func (h funcHandler) Log(r *Record) error { return h(r) }

func FuncHandler(fn func(r *Record) error) Handler {
	return funcHandler(fn)
}

// StreamHandler writes records to the given writer with the given formatter.
func StreamHandler(wr io.Writer, format func(*Record, bool) []byte, color bool) Handler {
	var mu sync.Mutex
	return FuncHandler(func(r *Record) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := wr.Write(format(r, color))
		return err
	})
}

// StdoutHandler writes colorized terminal output when stdout is a tty.
func StdoutHandler() Handler {
	useColor := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	output := io.Writer(os.Stdout)
	if useColor {
		output = colorable.NewColorableStdout()
	}
	return StreamHandler(output, terminalFormat, useColor)
}

// LvlFilterHandler drops records above the given verbosity.
func LvlFilterHandler(maxLvl Lvl, h Handler) Handler {
	return FuncHandler(func(r *Record) error {
		if r.Lvl <= maxLvl {
			return h.Log(r)
		}
		return nil
	})
}

func MultiHandler(hs ...Handler) Handler {
	return FuncHandler(func(r *Record) error {
		for _, h := range hs {
			h.Log(r)
		}
		return nil
	})
}

func DiscardHandler() Handler {
	return FuncHandler(func(r *Record) error { return nil })
}

const termTimeFormat = "01-02|15:04:05.000"

func terminalFormat(r *Record, color bool) []byte {
	var b strings.Builder
	lvl := r.Lvl.AlignedString()
	if color {
		if c := lvlColor(r.Lvl); c > 0 {
			lvl = fmt.Sprintf("\x1b[%dm%s\x1b[0m", c, lvl)
		}
	}
	fmt.Fprintf(&b, "%s[%s] %s", lvl, r.Time.Format(termTimeFormat), r.Msg)
	for i := 0; i < len(r.Ctx); i += 2 {
		k, ok := r.Ctx[i].(string)
		if !ok {
			k = errorKey
		}
		v := formatValue(r.Ctx[i+1])
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		if color {
			fmt.Fprintf(&b, " \x1b[36m%s\x1b[0m=%s", k, v)
		} else {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func lvlColor(l Lvl) int {
	switch l {
	case LvlCrit:
		return 35
	case LvlError:
		return 31
	case LvlWarn:
		return 33
	case LvlInfo:
		return 32
	case LvlDebug:
		return 36
	default:
		return 0
	}
}

// swapHandler wraps another handler that may be swapped out atomically.
type swapHandler struct {
	handler atomic.Value
}

func (h *swapHandler) Log(r *Record) error {
	return (*h.handler.Load().(*Handler)).Log(r)
}

func (h *swapHandler) Swap(newHandler Handler) {
	h.handler.Store(&newHandler)
}

func (h *swapHandler) Get() Handler {
	return *h.handler.Load().(*Handler)
}
