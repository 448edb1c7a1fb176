package logx

import "sync"

// Entry is one recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Fields []Field
}

// Field returns the value recorded under key, if any.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Recorder keeps log entries in memory for assertions in tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder { return &Recorder{} }

// Logger returns a Logger that appends to r.
func (r *Recorder) Logger() Logger { return bound{r: r} }

// Entries returns a copy of everything logged so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ByLevel returns the entries logged at level.
func (r *Recorder) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) add(level, msg string, fields []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

type bound struct {
	r    *Recorder
	base []Field
}

func (b bound) fields(f []Field) []Field {
	out := make([]Field, 0, len(b.base)+len(f))
	return append(append(out, b.base...), f...)
}

func (b bound) Debug(msg string, f ...Field) { b.r.add("debug", msg, b.fields(f)) }
func (b bound) Info(msg string, f ...Field)  { b.r.add("info", msg, b.fields(f)) }
func (b bound) Warn(msg string, f ...Field)  { b.r.add("warn", msg, b.fields(f)) }
func (b bound) Error(msg string, f ...Field) { b.r.add("error", msg, b.fields(f)) }

func (b bound) With(f ...Field) Logger {
	return bound{r: b.r, base: b.fields(f)}
}
