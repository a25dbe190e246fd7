package modem

import (
	"bytes"
	"strconv"
	"strings"
)

// AT text-mode vocabulary.
const (
	crlf   = "\r\n"
	prompt = "> "
	ctrlZ  = "\x1a"

	respOK    = "OK"
	respError = "ERROR"
	cmeError  = "+CME ERROR:"
	cmsError  = "+CMS ERROR:"

	urcNewMessage = "+CMTI:"
	cmgrHeader    = "+CMGR:"
)

// scanAT splits the modem byte stream into CRLF lines, with one special
// case: the SMS input prompt "> " arrives without a line terminator and
// must be surfaced as its own token.
func scanAT(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], "\r"), nil
	}
	if string(bytes.TrimLeft(data, "\r\n")) == prompt {
		return len(data), []byte(prompt), nil
	}
	if atEOF && len(data) > 0 {
		return len(data), bytes.TrimRight(data, "\r"), nil
	}
	return 0, nil, nil
}

func isFinal(line string) bool {
	return line == respOK ||
		line == respError ||
		strings.HasPrefix(line, cmeError) ||
		strings.HasPrefix(line, cmsError)
}

func isURC(line string) bool {
	return strings.HasPrefix(line, urcNewMessage)
}

// parseCMTI extracts the storage index from a +CMTI: "SM",<index> URC.
func parseCMTI(line string) (int, bool) {
	rest := strings.TrimPrefix(line, urcNewMessage)
	fields := strings.Split(rest, ",")
	if len(fields) < 2 {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
	if err != nil {
		return 0, false
	}
	return idx, true
}

// parseCMGRSender extracts the originating address from a +CMGR: header
// line, e.g. +CMGR: "REC UNREAD","+391234567",,"24/05/01,10:02:33+08".
func parseCMGRSender(line string) string {
	fields := strings.Split(strings.TrimPrefix(line, cmgrHeader), ",")
	if len(fields) < 2 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(fields[1]), `"`)
}
