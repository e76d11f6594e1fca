package sip

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Parser turns wire bytes into messages. Header values stay unparsed until
// first access; the parser itself carves boundaries, parses the start-line
// and reads Content-Length to bound the body.
type Parser struct {
	log zerolog.Logger
}

// ParserOption customizes NewParser.
type ParserOption func(p *Parser)

// WithParserLogger overrides the parser logger.
func WithParserLogger(logger zerolog.Logger) ParserOption {
	return func(p *Parser) {
		p.log = logger
	}
}

// NewParser creates a message parser.
func NewParser(options ...ParserOption) *Parser {
	p := &Parser{
		log: log.Logger,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// ParseSIP builds a Message from a full SIP datagram: start-line parsed,
// header boundaries carved, body attached. The Content-Length value, when
// present and sane, bounds the body.
func (p *Parser) ParseSIP(data []byte) (*Message, error) {
	msg := NewMessage(data)
	if err := msg.SetupHeaderPointers(); err != nil {
		return nil, err
	}

	if cl, err := msg.ContentLength(); err == nil && cl >= 0 && cl < len(msg.body) {
		p.log.Debug().
			Int("content-length", cl).
			Int("body", len(msg.body)).
			Str("msgid", string(msg.id)).
			Msg("body longer than Content-Length, truncating")
		msg.mu.Lock()
		msg.size -= len(msg.body) - cl
		msg.body = msg.body[:cl]
		msg.mu.Unlock()
	}
	return msg, nil
}

// ParseMessage parses with a default parser.
func ParseMessage(data []byte) (*Message, error) {
	return NewParser().ParseSIP(data)
}
