package gitproto

import (
	"fmt"
	"strconv"
)

const (
	flushPkt      = "0000"
	pktHeaderLen  = 4
	maxPktLineLen = 65520
)

// PacketLine frames payload as a single pkt-line.
func PacketLine(payload string) []byte {
	return []byte(fmt.Sprintf("%04x%s", len(payload)+pktHeaderLen, payload))
}

// ServiceHeader is the preamble of a smart info/refs response.
func ServiceHeader(svc Service) []byte {
	return append(PacketLine("# service="+string(svc)+"\n"), flushPkt...)
}

// parsePktLength decodes a 4 byte hex length prefix.
func parsePktLength(b []byte) (int, error) {
	if len(b) < pktHeaderLen {
		return 0, fmt.Errorf("short pkt-line header")
	}
	n, err := strconv.ParseUint(string(b[:pktHeaderLen]), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid pkt-line length %q: %w", b[:pktHeaderLen], err)
	}
	if n > maxPktLineLen {
		return 0, fmt.Errorf("pkt-line length %d exceeds %d", n, maxPktLineLen)
	}
	return int(n), nil
}
