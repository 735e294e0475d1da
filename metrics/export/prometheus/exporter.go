package prometheus

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is what the exporter reads on every scrape. *authgate.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics on demand.
type Exporter struct {
	source Source
}

func New(engine *authgate.Engine) *Exporter {
	if engine == nil {
		return &Exporter{}
	}
	return &Exporter{source: engine}
}

func NewFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves GET and HEAD scrapes. A scrape while metrics are disabled
// answers 204 with no body.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		if !e.enabled() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = e.WriteTo(w)
	})
}

// Render returns the exposition text, or "" when metrics are disabled.
func (e *Exporter) Render() string {
	var b strings.Builder
	_, _ = e.WriteTo(&b)
	return b.String()
}

// WriteTo streams one snapshot to w and writes nothing when metrics are
// disabled.
func (e *Exporter) WriteTo(w io.Writer) (int64, error) {
	if e == nil || e.source == nil {
		return 0, nil
	}
	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if isEmpty(snapshot, dropped) {
		return 0, nil
	}

	tw := &textWriter{w: bufio.NewWriterSize(w, 8192)}
	for _, def := range internaldefs.CounterDefs {
		tw.family(def.Name, def.Help, "counter")
		tw.sample(def.Name, "", snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		tw.histogram(def.Name, def.Help, buckets)
	}
	tw.family(auditDroppedName, auditDroppedHelp, "counter")
	tw.sample(auditDroppedName, "", dropped)
	return tw.flush()
}

const (
	auditDroppedName = "authgate_audit_dropped_total"
	auditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

func (e *Exporter) enabled() bool {
	if e == nil || e.source == nil {
		return false
	}
	return !isEmpty(e.source.MetricsSnapshot(), e.source.AuditDropped())
}

func isEmpty(s authgate.MetricsSnapshot, dropped uint64) bool {
	return len(s.Counters) == 0 && len(s.Histograms) == 0 && dropped == 0
}

// textWriter keeps the first write error and turns later writes into no-ops.
type textWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (t *textWriter) line(parts ...string) {
	for _, p := range parts {
		if t.err != nil {
			return
		}
		n, err := t.w.WriteString(p)
		t.n += int64(n)
		t.err = err
	}
}

func (t *textWriter) family(name, help, kind string) {
	t.line("# HELP ", name, " ", escapeHelp(help), "\n")
	t.line("# TYPE ", name, " ", kind, "\n")
}

func (t *textWriter) sample(name, labels string, v uint64) {
	t.line(name, labels, " ", strconv.FormatUint(v, 10), "\n")
}

// histogram writes cumulative buckets. Snapshots carry no sum, so _sum is 0.
func (t *textWriter) histogram(name, help string, cumulative [8]uint64) {
	t.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		t.sample(name+"_bucket", `{le="`+le+`"}`, cumulative[i])
	}
	t.sample(name+"_count", "", cumulative[len(cumulative)-1])
	t.sample(name+"_sum", "", 0)
}

func (t *textWriter) flush() (int64, error) {
	if t.err == nil {
		t.err = t.w.Flush()
	}
	return t.n, t.err
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string { return helpEscaper.Replace(help) }
