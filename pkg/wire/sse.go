package wire

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one dispatched Server-Sent Event.
type SSEEvent struct {
	Event string // defaults to "message" when not provided
	Data  string // joined by "\n" when multiple data lines were sent
	ID    string
	Retry string // raw retry-hint text; "" if the server did not send one

	// Custom holds any field name other than event/data/id/retry, mapped
	// to its value. The WHATWG algorithm has no such bucket of its own —
	// it silently drops unrecognized fields — but callers building on
	// server-specific extensions need somewhere to find them.
	Custom map[string]string
}

// ScanSSE reads r as a text/event-stream body, calling fn for each
// dispatched event in order. It stops and returns nil on EOF, or the first
// error other than EOF. fn returning false stops scanning early.
//
// Parsing follows the WHATWG EventSource algorithm: blank lines dispatch
// the buffered event, lines starting with ":" are comments and ignored,
// the first colon splits a line into field/value with one leading space in
// the value stripped, any other field name is stored in the custom-field
// map, and the stream may end without a trailing blank line (the final
// partial event, if any, is dispatched at EOF).
func ScanSSE(r io.Reader, fn func(SSEEvent) bool) error {
	reader := bufio.NewReader(r)

	var (
		eventName string
		dataLines []string
		eventID   string
		retry     string
		custom    map[string]string
	)

	dispatch := func() bool {
		if len(dataLines) == 0 && eventName == "" && eventID == "" && retry == "" && len(custom) == 0 {
			return true
		}
		ev := SSEEvent{
			Event:  "message",
			Data:   strings.Join(dataLines, "\n"),
			ID:     eventID,
			Retry:  retry,
			Custom: custom,
		}
		if eventName != "" {
			ev.Event = eventName
		}
		eventName, eventID, retry, custom = "", "", "", nil
		dataLines = dataLines[:0]
		return fn(ev)
	}

	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 && err != nil {
			if err == io.EOF {
				dispatch()
				return nil
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !dispatch() {
				return nil
			}
			if err == io.EOF {
				return nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			if err == io.EOF {
				dispatch()
				return nil
			}
			continue
		}

		var field, value string
		if idx := strings.IndexByte(line, ':'); idx == -1 {
			field, value = line, ""
		} else {
			field = line[:idx]
			value = line[idx+1:]
			if strings.HasPrefix(value, " ") {
				value = value[1:]
			}
		}

		switch field {
		case "event":
			eventName = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			if !strings.Contains(value, "\x00") {
				eventID = value
			}
		case "retry":
			retry = value
		default:
			if custom == nil {
				custom = make(map[string]string)
			}
			custom[field] = value
		}

		if err == io.EOF {
			dispatch()
			return nil
		}
	}
}
