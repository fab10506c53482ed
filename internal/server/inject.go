package server

import (
	"bytes"
	"net/http"
	"strings"
)

// maxInjectSize caps buffering; larger pages are passed through untouched.
const maxInjectSize = 1 << 20

var liveReloadTag = []byte(`<script async src="` + LiveReloadJS + `"></script>`)

// injectLiveReload inserts the live-reload client before </body> of HTML
// responses.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}

		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers an HTML response so the client script can be inserted.
type injector struct {
	http.ResponseWriter
	status        int
	buf           []byte
	buffering     bool
	passthrough   bool
	headerWritten bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code

	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.headerWritten = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.passthrough && !i.buffering {
		ct := i.Header().Get("Content-Type")
		if i.status != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			i.startPassthrough()
			return i.ResponseWriter.Write(data)
		}

		i.buffering = true
	}

	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}

	if len(i.buf)+len(data) > maxInjectSize {
		i.startPassthrough()

		if len(i.buf) > 0 {
			if _, err := i.ResponseWriter.Write(i.buf); err != nil {
				return 0, err
			}
		}

		return i.ResponseWriter.Write(data)
	}

	i.buf = append(i.buf, data...)

	return len(data), nil
}

func (i *injector) startPassthrough() {
	i.passthrough = true
	i.buffering = false

	if !i.headerWritten {
		i.ResponseWriter.WriteHeader(i.status)
		i.headerWritten = true
	}
}

func (i *injector) finalize() {
	if i.passthrough || i.headerWritten {
		return
	}

	if len(i.buf) == 0 {
		i.ResponseWriter.WriteHeader(i.status)
		return
	}

	body := i.buf
	if idx := bytes.LastIndex(bytes.ToLower(body), []byte("</body>")); idx >= 0 {
		out := make([]byte, 0, len(body)+len(liveReloadTag))
		out = append(out, body[:idx]...)
		out = append(out, liveReloadTag...)
		out = append(out, body[idx:]...)
		body = out
	} else {
		body = append(body, liveReloadTag...)
	}

	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(body)
}
