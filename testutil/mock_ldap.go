// Package testutil provides an in-process LDAP server for tests.
package testutil

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// LDAP application tags handled by MockDirectory.
const (
	ApplicationBindRequest       ber.Tag = 0
	ApplicationBindResponse      ber.Tag = 1
	ApplicationUnbindRequest     ber.Tag = 2
	ApplicationSearchRequest     ber.Tag = 3
	ApplicationSearchResultEntry ber.Tag = 4
	ApplicationSearchResultDone  ber.Tag = 5
	ApplicationAddRequest        ber.Tag = 8
	ApplicationAddResponse       ber.Tag = 9
)

// Result codes produced by MockDirectory on its own.
const (
	ResultSuccess            = 0
	ResultProtocolError      = 2
	ResultNoSuchObject       = 32
	ResultInvalidCredentials = 49
	ResultInsufficientAccess = 50
	ResultEntryAlreadyExists = 68
)

// MockEntry is an entry stored by MockDirectory.
type MockEntry struct {
	DN         string
	Attributes map[string][]string
}

// RecordedRequest is a request as it arrived on the wire.
type RecordedRequest struct {
	MessageID int64
	Tag       ber.Tag
	Raw       []byte
	Packet    *ber.Packet
}

// MockDirectory is a TCP LDAP server that understands Bind, Search, Add and
// Unbind. It decodes requests with the asn1-ber reference codec, so whatever
// it accepts is wire compatible.
type MockDirectory struct {
	AdminDN       string
	AdminPassword string

	listener net.Listener
	wg       sync.WaitGroup

	mu          sync.Mutex
	entries     []*MockEntry
	requests    []RecordedRequest
	connections int
	open        map[net.Conn]struct{}

	forcedResults map[ber.Tag]int
	idOffset      int64
	dropRequests  int
	byteAtATime   bool
	delay         time.Duration
	rawResponses  [][]byte
}

// NewMockDirectory starts a server on a random loopback port and stops it
// when the test ends.
func NewMockDirectory(t testing.TB, adminDN, adminPassword string) *MockDirectory {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mock directory listen: %v", err)
	}
	m := &MockDirectory{
		AdminDN:       adminDN,
		AdminPassword: adminPassword,
		listener:      l,
		open:          make(map[net.Conn]struct{}),
		forcedResults: make(map[ber.Tag]int),
	}
	m.wg.Add(1)
	go m.serve()
	t.Cleanup(m.Close)
	return m
}

// Addr returns the host and port the server listens on.
func (m *MockDirectory) Addr() (string, int) {
	addr := m.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// URL returns the server address as an ldap:// URL.
func (m *MockDirectory) URL() string {
	host, port := m.Addr()
	return "ldap://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Close stops the listener and all open connections.
func (m *MockDirectory) Close() {
	_ = m.listener.Close()
	m.mu.Lock()
	for c := range m.open {
		_ = c.Close()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// AddEntry stores an entry.
func (m *MockDirectory) AddEntry(dn string, attrs map[string][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &MockEntry{DN: dn, Attributes: attrs})
}

// Entry returns the entry stored under dn.
func (m *MockDirectory) Entry(dn string) (*MockEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.findLocked(dn)
	return e, e != nil
}

// Requests returns the requests received so far.
func (m *MockDirectory) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// Connections returns the number of accepted connections.
func (m *MockDirectory) Connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections
}

// ForceResult makes every response to requests with the given application
// tag carry code. A negative code restores normal behavior.
func (m *MockDirectory) ForceResult(request ber.Tag, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code < 0 {
		delete(m.forcedResults, request)
		return
	}
	m.forcedResults[request] = code
}

// SetMessageIDOffset adds offset to the message ID of every response.
func (m *MockDirectory) SetMessageIDOffset(offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idOffset = offset
}

// DropNextRequests closes the connection instead of answering the next n
// requests.
func (m *MockDirectory) DropNextRequests(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRequests = n
}

// SetByteAtATime writes every response one octet per Write call.
func (m *MockDirectory) SetByteAtATime(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byteAtATime = enabled
}

// SetResponseDelay delays every response.
func (m *MockDirectory) SetResponseDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// QueueRawResponse answers the next request with data verbatim.
func (m *MockDirectory) QueueRawResponse(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawResponses = append(m.rawResponses, data)
}

func (m *MockDirectory) serve() {
	defer m.wg.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		m.mu.Lock()
		m.connections++
		m.open[conn] = struct{}{}
		m.mu.Unlock()

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.handleConnection(conn)
			m.mu.Lock()
			delete(m.open, conn)
			m.mu.Unlock()
			_ = conn.Close()
		}()
	}
}

func (m *MockDirectory) handleConnection(conn net.Conn) {
	var wire bytes.Buffer
	reader := io.TeeReader(conn, &wire)

	for {
		packet, err := ber.ReadPacket(reader)
		if err != nil {
			return
		}
		raw := append([]byte(nil), wire.Bytes()...)
		wire.Reset()

		if len(packet.Children) < 2 {
			return
		}
		messageID, ok := packet.Children[0].Value.(int64)
		if !ok {
			return
		}
		req := packet.Children[1]

		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{MessageID: messageID, Tag: req.Tag, Raw: raw, Packet: packet})
		drop := m.dropRequests > 0
		if drop {
			m.dropRequests--
		}
		delay := m.delay
		var rawResponse []byte
		if len(m.rawResponses) > 0 {
			rawResponse = m.rawResponses[0]
			m.rawResponses = m.rawResponses[1:]
		}
		m.mu.Unlock()

		if drop {
			return
		}
		if req.Tag == ApplicationUnbindRequest {
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if rawResponse != nil {
			if err := m.write(conn, rawResponse); err != nil {
				return
			}
			continue
		}

		var responses []*ber.Packet
		switch req.Tag {
		case ApplicationBindRequest:
			responses = []*ber.Packet{m.handleBind(messageID, req)}
		case ApplicationSearchRequest:
			responses = m.handleSearch(messageID, req)
		case ApplicationAddRequest:
			responses = []*ber.Packet{m.handleAdd(messageID, req)}
		default:
			responses = []*ber.Packet{m.result(messageID, req.Tag+1, ResultProtocolError, "", "unsupported operation")}
		}
		for _, p := range responses {
			if err := m.write(conn, p.Bytes()); err != nil {
				return
			}
		}
	}
}

func (m *MockDirectory) write(conn net.Conn, data []byte) error {
	m.mu.Lock()
	oneByOne := m.byteAtATime
	m.mu.Unlock()

	if !oneByOne {
		_, err := conn.Write(data)
		return err
	}
	for i := range data {
		if _, err := conn.Write(data[i : i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDirectory) forced(tag ber.Tag) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.forcedResults[tag]
	return code, ok
}

func (m *MockDirectory) handleBind(messageID int64, req *ber.Packet) *ber.Packet {
	if code, ok := m.forced(ApplicationBindRequest); ok {
		return m.result(messageID, ApplicationBindResponse, code, "", "")
	}
	if len(req.Children) != 3 {
		return m.result(messageID, ApplicationBindResponse, ResultProtocolError, "", "malformed bind")
	}
	dn := packetString(req.Children[1])
	password := packetString(req.Children[2])
	if dn != m.AdminDN || password != m.AdminPassword {
		return m.result(messageID, ApplicationBindResponse, ResultInvalidCredentials, "", "invalid credentials")
	}
	return m.result(messageID, ApplicationBindResponse, ResultSuccess, "", "")
}

func (m *MockDirectory) handleSearch(messageID int64, req *ber.Packet) []*ber.Packet {
	if code, ok := m.forced(ApplicationSearchRequest); ok {
		return []*ber.Packet{m.result(messageID, ApplicationSearchResultDone, code, "", "")}
	}
	if len(req.Children) != 8 {
		return []*ber.Packet{m.result(messageID, ApplicationSearchResultDone, ResultProtocolError, "", "malformed search")}
	}
	base := packetString(req.Children[0])
	filter := req.Children[6]
	var wanted []string
	for _, a := range req.Children[7].Children {
		wanted = append(wanted, packetString(a))
	}

	m.mu.Lock()
	var matched []*MockEntry
	for _, e := range m.entries {
		if underBase(e.DN, base) && matchFilter(e, filter) {
			matched = append(matched, e)
		}
	}
	m.mu.Unlock()

	out := make([]*ber.Packet, 0, len(matched)+1)
	for _, e := range matched {
		out = append(out, m.entry(messageID, e, wanted))
	}
	return append(out, m.result(messageID, ApplicationSearchResultDone, ResultSuccess, "", ""))
}

func (m *MockDirectory) handleAdd(messageID int64, req *ber.Packet) *ber.Packet {
	if code, ok := m.forced(ApplicationAddRequest); ok {
		return m.result(messageID, ApplicationAddResponse, code, "", "")
	}
	if len(req.Children) != 2 {
		return m.result(messageID, ApplicationAddResponse, ResultProtocolError, "", "malformed add")
	}
	dn := packetString(req.Children[0])
	attrs := make(map[string][]string)
	for _, a := range req.Children[1].Children {
		if len(a.Children) != 2 {
			return m.result(messageID, ApplicationAddResponse, ResultProtocolError, "", "malformed attribute")
		}
		name := packetString(a.Children[0])
		for _, v := range a.Children[1].Children {
			attrs[name] = append(attrs[name], packetString(v))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(dn) != nil {
		return m.result(messageID, ApplicationAddResponse, ResultEntryAlreadyExists, "", "entry already exists")
	}
	m.entries = append(m.entries, &MockEntry{DN: dn, Attributes: attrs})
	return m.result(messageID, ApplicationAddResponse, ResultSuccess, "", "")
}

func (m *MockDirectory) findLocked(dn string) *MockEntry {
	for _, e := range m.entries {
		if strings.EqualFold(e.DN, dn) {
			return e
		}
	}
	return nil
}

func (m *MockDirectory) envelope(messageID int64) *ber.Packet {
	m.mu.Lock()
	offset := m.idOffset
	m.mu.Unlock()

	p := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Response")
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, messageID+offset, "MessageID"))
	return p
}

func (m *MockDirectory) result(messageID int64, tag ber.Tag, code int, matchedDN, diagnostic string) *ber.Packet {
	p := m.envelope(messageID)
	r := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, "LDAPResult")
	r.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, code, "resultCode"))
	r.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, matchedDN, "matchedDN"))
	r.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diagnostic, "diagnosticMessage"))
	p.AppendChild(r)
	return p
}

func (m *MockDirectory) entry(messageID int64, e *MockEntry, wanted []string) *ber.Packet {
	p := m.envelope(messageID)
	r := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultEntry, nil, "SearchResultEntry")
	r.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, e.DN, "objectName"))

	list := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for name, values := range e.Attributes {
		if len(wanted) > 0 && !containsFold(wanted, name) {
			continue
		}
		attr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attribute")
		attr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "type"))
		set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, v := range values {
			set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "value"))
		}
		attr.AppendChild(set)
		list.AppendChild(attr)
	}
	r.AppendChild(list)
	p.AppendChild(r)
	return p
}

// matchFilter evaluates AND, OR, NOT, equality and substring filters with
// case-insensitive matching.
func matchFilter(e *MockEntry, f *ber.Packet) bool {
	switch f.Tag {
	case 0:
		for _, c := range f.Children {
			if !matchFilter(e, c) {
				return false
			}
		}
		return true
	case 1:
		for _, c := range f.Children {
			if matchFilter(e, c) {
				return true
			}
		}
		return false
	case 2:
		return len(f.Children) == 1 && !matchFilter(e, f.Children[0])
	case 3:
		if len(f.Children) != 2 {
			return false
		}
		want := packetString(f.Children[1])
		for _, v := range values(e, packetString(f.Children[0])) {
			if strings.EqualFold(v, want) {
				return true
			}
		}
		return false
	case 4:
		if len(f.Children) != 2 {
			return false
		}
		for _, v := range values(e, packetString(f.Children[0])) {
			if matchSubstrings(strings.ToLower(v), f.Children[1].Children) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchSubstrings(v string, parts []*ber.Packet) bool {
	for _, p := range parts {
		s := strings.ToLower(packetString(p))
		switch p.Tag {
		case 0:
			if !strings.HasPrefix(v, s) {
				return false
			}
			v = v[len(s):]
		case 1:
			i := strings.Index(v, s)
			if i < 0 {
				return false
			}
			v = v[i+len(s):]
		case 2:
			if !strings.HasSuffix(v, s) {
				return false
			}
			v = ""
		default:
			// Components without a context tag are a protocol violation.
			return false
		}
	}
	return true
}

func values(e *MockEntry, attr string) []string {
	for name, vals := range e.Attributes {
		if strings.EqualFold(name, attr) {
			return vals
		}
	}
	return nil
}

func underBase(dn, base string) bool {
	dn, base = strings.ToLower(dn), strings.ToLower(base)
	return base == "" || dn == base || strings.HasSuffix(dn, ","+base)
}

func containsFold(list []string, s string) bool {
	for _, l := range list {
		if strings.EqualFold(l, s) {
			return true
		}
	}
	return false
}

// packetString returns the content octets of a primitive packet.
func packetString(p *ber.Packet) string {
	if p.Data != nil && p.Data.Len() > 0 {
		return p.Data.String()
	}
	if s, ok := p.Value.(string); ok {
		return s
	}
	return string(p.ByteValue)
}
