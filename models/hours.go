package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OpeningHoursTextKey holds opening hours that the page only gave as free
// text rather than a per-day table.
const OpeningHoursTextKey = "text"

// DayHours is one row of a restaurant's opening hours.
type DayHours struct {
	Day   string
	Hours string
}

// OpeningHours is an ordered day -> hours mapping. It serializes as a JSON
// object with keys in page order, or "N/A" when empty.
type OpeningHours []DayHours

// UnstructuredHours stores free text under OpeningHoursTextKey.
func UnstructuredHours(text string) OpeningHours {
	return OpeningHours{{Day: OpeningHoursTextKey, Hours: text}}
}

func (h OpeningHours) MarshalJSON() ([]byte, error) {
	if len(h) == 0 {
		return json.Marshal(NotAvailable)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dh := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, dh.Day); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, dh.Hours); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *OpeningHours) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("opening hours: %w", err)
		}
		if s == NotAvailable || s == "" {
			*h = nil
		} else {
			*h = UnstructuredHours(s)
		}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*h = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("opening hours: %w", err)
	}
	var out OpeningHours
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("opening hours: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("opening hours: unexpected key %v", keyTok)
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("opening hours %q: %w", key, err)
		}
		out = append(out, DayHours{Day: key, Hours: val})
	}
	*h = out
	return nil
}

// String renders the hours for a table cell.
func (h OpeningHours) String() string {
	if len(h) == 0 {
		return NotAvailable
	}
	b, err := h.MarshalJSON()
	if err != nil {
		return NotAvailable
	}
	return string(b)
}

// NameList is a list of labels (nearby restaurants, facilities). It
// serializes as a JSON array, or "N/A" when empty.
type NameList []string

func (l NameList) MarshalJSON() ([]byte, error) {
	if len(l) == 0 {
		return json.Marshal(NotAvailable)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, s := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, s); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (l *NameList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("name list: %w", err)
		}
		*l = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("name list: %w", err)
	}
	*l = items
	return nil
}

// String renders the list as JSON text for a table cell.
func (l NameList) String() string {
	if len(l) == 0 {
		return NotAvailable
	}
	b, err := l.MarshalJSON()
	if err != nil {
		return NotAvailable
	}
	return string(b)
}

// writeJSONString encodes s without HTML escaping so Thai text and "&" stay
// readable in the output files.
func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
