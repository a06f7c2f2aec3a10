package gitproto

import (
	"bytes"
	"encoding/hex"
	"strings"

	"graderservice/internal/model"
)

const maxCommandSection = 1 << 20

// CommandSniffer observes a receive-pack request body and collects the
// ref update commands that precede the pack. It is meant to sit behind an
// io.TeeReader and never fails the copy; once the flush-pkt ending the
// command list is seen it drops everything else.
type CommandSniffer struct {
	buf      []byte
	commands []model.RefUpdate
	done     bool
	broken   bool
}

func (s *CommandSniffer) Write(p []byte) (int, error) {
	if s.done {
		return len(p), nil
	}
	s.buf = append(s.buf, p...)
	for !s.done && len(s.buf) >= pktHeaderLen {
		n, err := parsePktLength(s.buf)
		if err != nil || (n > 0 && n < pktHeaderLen) {
			s.stop(true)
			break
		}
		if n == 0 {
			s.stop(false)
			break
		}
		if len(s.buf) < n {
			break
		}
		s.parse(s.buf[pktHeaderLen:n])
		s.buf = s.buf[n:]
	}
	if !s.done && len(s.buf) > maxCommandSection {
		s.stop(true)
	}
	return len(p), nil
}

func (s *CommandSniffer) stop(broken bool) {
	s.done = true
	s.broken = broken
	s.buf = nil
}

func (s *CommandSniffer) parse(line []byte) {
	if i := bytes.IndexByte(line, 0); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) != 3 || !isObjectID(fields[0]) || !isObjectID(fields[1]) {
		// shallow and push-cert lines
		return
	}
	if !strings.HasPrefix(fields[2], "refs/") {
		return
	}
	s.commands = append(s.commands, model.RefUpdate{Old: fields[0], New: fields[1], Name: fields[2]})
}

// Commands returns the parsed commands. It is empty when the command list
// was malformed or never terminated.
func (s *CommandSniffer) Commands() []model.RefUpdate {
	if !s.done || s.broken {
		return nil
	}
	return s.commands
}

func isObjectID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
