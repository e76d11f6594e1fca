// Package siptest builds canned SIP messages for tests and tools.
package siptest

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// MessageBuilder accumulates header lines over a start line.
type MessageBuilder struct {
	start   string
	headers []string
	body    string
}

// NewRequest starts a request message.
func NewRequest(method, uri string) *MessageBuilder {
	return &MessageBuilder{start: method + " " + uri + " SIP/2.0"}
}

// NewResponse starts a response message.
func NewResponse(code int, reason string) *MessageBuilder {
	return &MessageBuilder{start: "SIP/2.0 " + strconv.Itoa(code) + " " + reason}
}

// Header appends a header line.
func (b *MessageBuilder) Header(name, value string) *MessageBuilder {
	b.headers = append(b.headers, name+": "+value)
	return b
}

// Body sets the message body and its Content-Length.
func (b *MessageBuilder) Body(body string) *MessageBuilder {
	b.body = body
	return b.Header("Content-Length", strconv.Itoa(len(body)))
}

// Bytes renders the message in wire form.
func (b *MessageBuilder) Bytes() []byte {
	var sb strings.Builder
	sb.WriteString(b.start)
	sb.WriteString("\r\n")
	for _, h := range b.headers {
		sb.WriteString(h)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	sb.WriteString(b.body)
	return []byte(sb.String())
}

// ReadMessages splits a capture stream into raw SIP messages. Messages are
// separated by a blank line; bodies are not supported by this reader.
// Chunks are not validated: every non-empty chunk is returned, and only a
// read error of the underlying stream is logged.
func ReadMessages(r io.Reader, log *logrus.Logger) [][]byte {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var msgs [][]byte
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		msgs = append(msgs, []byte(cur.String()+"\r\n"))
		cur.Reset()
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\r\n")
	}
	if err := sc.Err(); err != nil {
		log.WithError(err).Warn("capture read stopped early")
	}
	flush()
	log.WithField("messages", len(msgs)).Debug("capture loaded")
	return msgs
}
