// Package brokerexport reads the document exports of the sensor broker and
// splits them into per-topic series.
//
// Each exported document looks like
//
//	{"topic": "telhado1/nivel", "datetime": {"$date": "2024-05-10T17:00:00Z"}, "body": 12.5}
//
// Exports come either as JSON lines (one document per line, every topic
// mixed) or as a JSON array of documents of a single topic.
package brokerexport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
)

// ErrInvalidDocument is returned for documents without a readable datetime.
var ErrInvalidDocument = errors.New("invalid document")

// maxLineSize bounds a single JSON line.
const maxLineSize = 1 << 20

// Message is one exported broker document.
type Message struct {
	Topic string
	Time  time.Time
	Body  json.RawMessage

	// fields keeps the whole document so it can be re-exported unchanged.
	fields map[string]json.RawMessage
}

// NewMessage builds a document the way the broker exports it.
func NewMessage(topic string, t time.Time, body any) (Message, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Message{}, err
	}
	date, err := json.Marshal(map[string]string{"$date": t.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return Message{}, err
	}
	fields := map[string]json.RawMessage{"datetime": date, "body": b}
	if topic != "" {
		tb, err := json.Marshal(topic)
		if err != nil {
			return Message{}, err
		}
		fields["topic"] = tb
	}
	return Message{Topic: topic, Time: t.UTC(), Body: b, fields: fields}, nil
}

// WriteLines writes messages as a JSON-lines export.
func WriteLines(w io.Writer, msgs []Message) error {
	enc := json.NewEncoder(w)
	for _, m := range msgs {
		if err := enc.Encode(m.fields); err != nil {
			return err
		}
	}
	return nil
}

// ReadLines reads a JSON-lines export. Blank lines are skipped.
func ReadLines(r io.Reader) ([]Message, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []Message
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		m, err := decode(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadArray reads a JSON array export.
func ReadArray(r io.Reader) ([]Message, error) {
	var docs []json.RawMessage
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	out := make([]Message, 0, len(docs))
	for i, d := range docs {
		m, err := decode(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// WriteArray writes messages as an indented JSON array with the topic field removed.
func WriteArray(w io.Writer, msgs []Message) error {
	docs := make([]map[string]json.RawMessage, len(msgs))
	for i, m := range msgs {
		doc := make(map[string]json.RawMessage, len(m.fields))
		for k, v := range m.fields {
			if k != "topic" {
				doc[k] = v
			}
		}
		docs[i] = doc
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(docs)
}

func decode(b []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Message{}, err
	}

	m := Message{Body: fields["body"], fields: fields}
	if raw, ok := fields["topic"]; ok {
		if err := json.Unmarshal(raw, &m.Topic); err != nil {
			return Message{}, fmt.Errorf("%w: topic: %w", ErrInvalidDocument, err)
		}
	}

	t, err := parseDate(fields["datetime"])
	if err != nil {
		return Message{}, err
	}
	m.Time = t
	return m, nil
}

// parseDate accepts {"$date": "<RFC 3339>"} and {"$date": <epoch millis>}.
func parseDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("%w: missing datetime", ErrInvalidDocument)
	}
	var wrapper struct {
		Date json.RawMessage `json:"$date"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || len(wrapper.Date) == 0 {
		return time.Time{}, fmt.Errorf("%w: datetime must be {\"$date\": ...}", ErrInvalidDocument)
	}

	var s string
	if err := json.Unmarshal(wrapper.Date, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		return t, nil
	}
	var ms int64
	if err := json.Unmarshal(wrapper.Date, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unreadable $date %s", ErrInvalidDocument, wrapper.Date)
}

// bodyText renders a body as the text a CSV cell would hold: strings are
// unquoted, everything else is kept as JSON.
func bodyText(body json.RawMessage) string {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	if string(body) == "null" {
		return ""
	}
	return string(body)
}

// ToRawRecords converts messages to H:MM records in loc. Body strings are
// kept as-is so coercion decides what is missing.
func ToRawRecords(msgs []Message, loc *time.Location) []domain.RawRecord {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]domain.RawRecord, len(msgs))
	for i, m := range msgs {
		t := m.Time.In(loc)
		out[i] = domain.RawRecord{
			Timestamp: fmt.Sprintf("%d:%02d", t.Hour(), t.Minute()),
			Value:     bodyText(m.Body),
		}
	}
	return out
}

// TopicFileName turns a topic into a file name stem.
func TopicFileName(topic string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(topic)
}
