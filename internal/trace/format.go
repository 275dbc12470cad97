package trace

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatText    Format = iota // human-readable text
	FormatNDJSON                // newline-delimited JSON
	FormatMsgpack               // msgpack stream
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	default:
		return FormatText, fmt.Errorf("invalid trace format: %q (expected: text|ndjson|msgpack)", s)
	}
}

// wireEvent is the serialized shape shared by NDJSON and msgpack.
type wireEvent struct {
	Time   string            `json:"time" msgpack:"time"`
	Seq    uint64            `json:"seq" msgpack:"seq"`
	Kind   string            `json:"kind" msgpack:"kind"`
	Scope  string            `json:"scope" msgpack:"scope"`
	TaskID uint64            `json:"task_id,omitempty" msgpack:"task_id,omitempty"`
	Name   string            `json:"name" msgpack:"name"`
	Detail string            `json:"detail,omitempty" msgpack:"detail,omitempty"`
	Extra  map[string]string `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

func toWire(ev *Event) wireEvent {
	return wireEvent{
		Time:   ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:    ev.Seq,
		Kind:   ev.Kind.String(),
		Scope:  ev.Scope.String(),
		TaskID: ev.TaskID,
		Name:   ev.Name,
		Detail: ev.Detail,
		Extra:  ev.Extra,
	}
}

// FormatEvent formats an event according to the specified format.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatMsgpack:
		return formatMsgpack(ev)
	default:
		return formatText(ev)
	}
}

func formatNDJSON(ev *Event) []byte {
	data, _ := json.Marshal(toWire(ev))
	data = append(data, '\n')
	return data
}

func formatMsgpack(ev *Event) []byte {
	data, _ := msgpack.Marshal(toWire(ev))
	return data
}

// formatText formats an event as human-readable text.
func formatText(ev *Event) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[seq=%06d] ", ev.Seq))

	switch ev.Kind {
	case KindSpanBegin:
		sb.WriteString("→ ")
	case KindSpanEnd:
		sb.WriteString("← ")
	case KindPoint:
		sb.WriteString("• ")
	case KindHeartbeat:
		sb.WriteString("♡ ")
	}

	if ev.TaskID != 0 {
		sb.WriteString(fmt.Sprintf("task %d ", ev.TaskID))
	}
	sb.WriteString(ev.Name)

	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}

	if len(ev.Extra) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range ev.Extra {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(v)
			first = false
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return []byte(sb.String())
}
