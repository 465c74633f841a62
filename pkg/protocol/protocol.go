package protocol

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	CRLF = []byte("\r\n") // 请求行结束符
)

// Message 表示一条命令请求: Name(arg0,arg1,...)
type Message struct {
	Name string
	Args []any
}

func NewMessage(name string, args ...any) *Message {
	return &Message{Name: name, Args: args}
}

// CommandName maps an identifier-safe name to the wire name by turning every
// underscore into a space. Nothing else is altered.
func CommandName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// FormatArgs renders args as "(a,b,c)" using each value's plain string form.
// Values are neither quoted nor escaped, so they must not contain ',', '(',
// ')' or CR/LF.
func FormatArgs(args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// String 返回不带行结束符的请求行
func (m *Message) String() string {
	return CommandName(m.Name) + FormatArgs(m.Args...)
}

// Encode 编码为线上字节流 (UTF-8 + CRLF)
func (m *Message) Encode() []byte {
	return EncodeLine(m.String())
}

// EncodeLine appends CRLF to a raw command line.
func EncodeLine(line string) []byte {
	buf := make([]byte, 0, len(line)+len(CRLF))
	buf = append(buf, line...)
	return append(buf, CRLF...)
}

// Request is a parsed request line as seen by a server.
type Request struct {
	Name string
	Args []string
}

// ParseLine splits "Name(a,b)" into its wire name and raw argument strings.
// A bare name without parentheses, such as "ListCommands", has no args.
// Trailing CR/LF is ignored.
func ParseLine(line string) (*Request, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errors.New("empty request line")
	}

	open := strings.IndexByte(line, '(')
	if open < 0 {
		return &Request{Name: line}, nil
	}
	if !strings.HasSuffix(line, ")") {
		return nil, errors.Errorf("unterminated argument list in %q", line)
	}

	req := &Request{Name: line[:open]}
	inner := line[open+1 : len(line)-1]
	if inner != "" {
		req.Args = strings.Split(inner, ",")
	}
	return req, nil
}
