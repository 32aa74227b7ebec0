package instrumenter

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/viant/whyflow/inspector/javascript"
)

// sinkTemplate defines the trace sink once per process. It appends one JSON line per event
// with appendFileSync, so records land in execution order.
const sinkTemplate = `;(function (g$ANY) {
	if (typeof g.__whyflow_trace__ !== 'undefined') return;
	var fs = null;
	try {
		fs = typeof require === 'function' ? require('fs') : (g.process && typeof g.process.getBuiltinModule === 'function' ? g.process.getBuiltinModule('fs') : null);
	} catch (e) { fs = null; }
	var log = (g.process && g.process.env && g.process.env.WHYFLOW_TRACE_LOG) || $LOG;
	if (fs) {
		try {
			var dir = log.slice(0, Math.max(log.lastIndexOf('/'), log.lastIndexOf('\\')));
			if (dir) fs.mkdirSync(dir, { recursive: true });
		} catch (e) {}
	}
	var safe = function (v) {
		try { JSON.stringify(v); return v === undefined ? null : v; } catch (e) { return String(v); }
	};
	g.__whyflow_trace__ = function (id, status, data) {
		var i = id.lastIndexOf(':');
		var j = id.lastIndexOf(':', i - 1);
		var record = { timestamp: Date.now(), id: id, name: id.slice(j + 1, i), file: id.slice(0, j), line: Number(id.slice(i + 1)), status: status };
		if (status === 'START') {
			record.args = Array.prototype.map.call(data || [], safe);
		} else if (status === 'FAIL') {
			record.error = data && data.message !== undefined ? String(data.message) : String(data);
		}
		if (!fs) return;
		try { fs.appendFileSync(log, JSON.stringify(record) + '\n'); } catch (e) {}
	};
})(globalThis);`

var lineBreaks = regexp.MustCompile(`\s*\n\s*`)

// sink renders the prelude on a single line so that instrumented line numbers match the source
func (i *Instrumenter) sink(typed bool) string {
	text := strings.Replace(sinkTemplate, "$LOG", literal(i.logPath), 1)
	annotation := ""
	if typed {
		annotation = ": any"
		text = ";declare var " + Sink + ": any; " + text
	}
	text = strings.Replace(text, "$ANY", annotation, 1)
	return lineBreaks.ReplaceAllString(text, " ")
}

// prelude places the sink after a leading shebang line and the file directive prologue
func (i *Instrumenter) prelude(source *javascript.SourceFile) *insertion {
	ext := strings.ToLower(filepath.Ext(source.Path))
	text := i.sink(ext == ".ts" || ext == ".tsx")
	root := source.Root()
	offset, directive := prologueEnd(root, 0)
	if directive {
		return &insertion{offset: offset, depth: -1, text: text}
	}
	if root.NamedChildCount() > 0 && root.NamedChild(0).Type() == "hash_bang_line" {
		end := int(root.NamedChild(0).EndByte())
		idx := bytes.IndexByte(source.Source[end:], '\n')
		if idx == -1 {
			return &insertion{offset: len(source.Source), depth: -1, text: "\n" + text}
		}
		return &insertion{offset: end + idx + 1, depth: -1, text: text}
	}
	return &insertion{offset: 0, depth: -1, text: text}
}
