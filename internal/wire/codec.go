package wire

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Envelope text is one URL per exchange:
//
//	lab://<target>/<mnemonic>?sender=..&app=..&version=..[&host=..&port=..][&seg=f1^f2]...
//
// The seg parameter repeats once per segment in order; fields within a
// segment are individually escaped and joined with '^'.
const (
	Scheme         = "lab"
	paramSender    = "sender"
	paramApp       = "app"
	paramVersion   = "version"
	paramHost      = "host"
	paramPort      = "port"
	paramTimeoutMS = "timeout_ms"
	paramSegment   = "seg"
	fieldSeparator = "^"
)

// MessageToURL serializes a message to its envelope text.
func MessageToURL(m *Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: Scheme,
		Host:   m.Target,
		Path:   "/" + m.Kind.Mnemonic(),
	}
	q := url.Values{}
	q.Set(paramSender, m.Sender)
	if m.App != "" {
		q.Set(paramApp, m.App)
	}
	if m.Version != "" {
		q.Set(paramVersion, m.Version)
	}
	if m.Host != "" {
		q.Set(paramHost, m.Host)
	}
	if m.Port != 0 {
		q.Set(paramPort, strconv.Itoa(m.Port))
	}
	if m.TimeoutMS != 0 {
		q.Set(paramTimeoutMS, strconv.Itoa(m.TimeoutMS))
	}
	for _, seg := range m.Segments {
		q.Add(paramSegment, encodeSegment(seg))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// URLToMessage parses envelope text into a structured message. The
// mnemonic token in the path resolves exactly; unknown tokens yield a
// message of KindUnknown rather than an error.
func URLToMessage(text string) (*Message, error) {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheme, u.Scheme)
	}
	q := u.Query()
	m := &Message{
		Kind:    KindFromMnemonic(strings.TrimPrefix(u.Path, "/")),
		Sender:  q.Get(paramSender),
		Target:  u.Host,
		App:     q.Get(paramApp),
		Version: q.Get(paramVersion),
		Host:    q.Get(paramHost),
	}
	if raw := q.Get(paramPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: port %q", ErrInvalidEnvelope, raw)
		}
		m.Port = port
	}
	if raw := q.Get(paramTimeoutMS); raw != "" {
		timeout, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout_ms %q", ErrInvalidEnvelope, raw)
		}
		m.TimeoutMS = timeout
	}
	for _, raw := range q[paramSegment] {
		seg, err := decodeSegment(raw)
		if err != nil {
			return nil, err
		}
		m.Segments = append(m.Segments, seg)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeSegment(seg Segment) string {
	escaped := make([]string, 0, len(seg.Fields))
	for _, f := range seg.Fields {
		escaped = append(escaped, url.PathEscape(f))
	}
	return strings.Join(escaped, fieldSeparator)
}

func decodeSegment(raw string) (Segment, error) {
	parts := strings.Split(raw, fieldSeparator)
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		f, err := url.PathUnescape(p)
		if err != nil {
			return Segment{}, fmt.Errorf("%w: segment field %q", ErrInvalidEnvelope, p)
		}
		fields = append(fields, f)
	}
	return Segment{Fields: fields}, nil
}
