package sip

import (
	"fmt"
	"strconv"
	"strings"
)

// URIParam is one ;key[=value] parameter of a URI.
type URIParam struct {
	K string
	V string
}

// URIParams is an ordered uri-parameter list.
type URIParams []URIParam

// Get returns a value for a given key, if it exists.
func (p URIParams) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.K == key {
			return kv.V, true
		}
	}
	return "", false
}

// Has checks whether the key exists, valueless params included.
func (p URIParams) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// URI is a parsed SIP URI, RFC 3261 19.1.1:
//
//	sip:user:password@host:port;uri-parameters?headers
type URI struct {
	Scheme    string
	Encrypted bool
	Wildcard  bool
	User      string
	Password  string
	Host      string
	Port      int
	Params    URIParams
	Headers   URIParams
}

// String renders the URI back to its wire form.
func (u *URI) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString(":")
	if u.User != "" {
		sb.WriteString(u.User)
		if u.Password != "" {
			sb.WriteString(":")
			sb.WriteString(u.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(u.Host)
	if u.Port > 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(u.Port))
	}
	for _, p := range u.Params {
		sb.WriteString(";")
		sb.WriteString(p.K)
		if p.V != "" {
			sb.WriteString("=")
			sb.WriteString(p.V)
		}
	}
	for i, p := range u.Headers {
		if i == 0 {
			sb.WriteString("?")
		} else {
			sb.WriteString("&")
		}
		sb.WriteString(p.K)
		sb.WriteString("=")
		sb.WriteString(p.V)
	}
	return sb.String()
}

type uriFSM func(u *URI, s string) (uriFSM, string, error)

// ParseURI parses raw URI bytes. It is a pure function over its input; the
// returned URI owns its fields and does not alias the message buffer.
func ParseURI(b []byte) (*URI, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty URI")
	}
	u := &URI{}
	state := uriStateStart
	str := string(b)
	var err error
	for state != nil {
		state, str, err = state(u, str)
		if err != nil {
			return nil, err
		}
	}
	return u, nil
}

func uriStateStart(u *URI, s string) (uriFSM, string, error) {
	if s == "*" {
		u.Host = "*"
		u.Wildcard = true
		return nil, "", nil
	}
	return uriStateScheme(u, s)
}

func uriStateScheme(u *URI, s string) (uriFSM, string, error) {
	colInd := strings.Index(s, ":")
	if colInd == -1 {
		return nil, "", fmt.Errorf("missing protocol scheme")
	}
	u.Scheme = ASCIIToLower(s[:colInd])
	s = s[colInd+1:]

	switch u.Scheme {
	case "sip":
	case "sips":
		u.Encrypted = true
	case "tel":
	default:
		return nil, "", fmt.Errorf("invalid scheme %q", u.Scheme)
	}
	return uriStateUser, s, nil
}

func uriStateUser(u *URI, s string) (uriFSM, string, error) {
	var userend int
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' && userend == 0 {
			userend = i
		}
		if c == '@' {
			if userend > 0 {
				u.User = s[:userend]
				u.Password = s[userend+1 : i]
			} else {
				u.User = s[:i]
			}
			return uriStateHost, s[i+1:], nil
		}
	}
	return uriStateHost, s, nil
}

func uriStateHost(u *URI, s string) (uriFSM, string, error) {
	if len(s) > 0 && s[0] == '[' {
		// IPv6 reference, bracket to bracket
		end := strings.IndexByte(s, ']')
		if end == -1 {
			return nil, "", fmt.Errorf("unterminated IPv6 reference")
		}
		u.Host = s[:end+1]
		return uriStateAfterHost, s[end+1:], nil
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ':', ';', '?':
			u.Host = s[:i]
			return uriStateAfterHost, s[i:], nil
		}
	}
	u.Host = s
	u.Wildcard = s == "*"
	if u.Host == "" {
		return nil, "", fmt.Errorf("missing host")
	}
	return nil, "", nil
}

func uriStateAfterHost(u *URI, s string) (uriFSM, string, error) {
	if u.Host == "" {
		return nil, "", fmt.Errorf("missing host")
	}
	if len(s) == 0 {
		return nil, "", nil
	}
	switch s[0] {
	case ':':
		return uriStatePort, s[1:], nil
	case ';':
		return uriStateParams, s[1:], nil
	case '?':
		return uriStateHeaders, s[1:], nil
	}
	return nil, "", fmt.Errorf("unexpected %q after host", s[0])
}

func uriStatePort(u *URI, s string) (uriFSM, string, error) {
	var err error
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ';':
			u.Port, err = strconv.Atoi(s[:i])
			return uriStateParams, s[i+1:], err
		case '?':
			u.Port, err = strconv.Atoi(s[:i])
			return uriStateHeaders, s[i+1:], err
		}
	}
	u.Port, err = strconv.Atoi(s)
	return nil, "", err
}

func uriStateParams(u *URI, s string) (uriFSM, string, error) {
	for len(s) > 0 {
		end := len(s)
		if i := strings.IndexAny(s, ";?"); i >= 0 {
			end = i
		}
		kv := s[:end]
		var p URIParam
		if eq := strings.IndexByte(kv, '='); eq >= 0 {
			p = URIParam{K: kv[:eq], V: kv[eq+1:]}
		} else {
			p = URIParam{K: kv}
		}
		if p.K != "" {
			u.Params = append(u.Params, p)
		}
		if end == len(s) {
			return nil, "", nil
		}
		if s[end] == '?' {
			return uriStateHeaders, s[end+1:], nil
		}
		s = s[end+1:]
	}
	return nil, "", nil
}

func uriStateHeaders(u *URI, s string) (uriFSM, string, error) {
	for len(s) > 0 {
		end := len(s)
		if i := strings.IndexByte(s, '&'); i >= 0 {
			end = i
		}
		kv := s[:end]
		if eq := strings.IndexByte(kv, '='); eq >= 0 {
			u.Headers = append(u.Headers, URIParam{K: kv[:eq], V: kv[eq+1:]})
		} else if kv != "" {
			u.Headers = append(u.Headers, URIParam{K: kv})
		}
		if end == len(s) {
			break
		}
		s = s[end+1:]
	}
	return nil, "", nil
}
