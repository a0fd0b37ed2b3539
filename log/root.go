package log

var root = &logger{ctx: []interface{}{}, h: new(swapHandler)}

func init() {
	root.SetHandler(StdoutHandler())
}

// New returns a child of the root logger with the given context.
func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

func Root() Logger { return root }

func SetHandler(h Handler) { root.SetHandler(h) }

func Trace(msg string, ctx ...interface{}) { root.write(msg, LvlTrace, ctx) }
func Debug(msg string, ctx ...interface{}) { root.write(msg, LvlDebug, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(msg, LvlInfo, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(msg, LvlWarn, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(msg, LvlError, ctx) }
func Crit(msg string, ctx ...interface{})  { root.write(msg, LvlCrit, ctx) }
