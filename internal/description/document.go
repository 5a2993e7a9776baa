package description

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// ErrMissingField is returned when a description lacks friendlyName or manufacturer
var ErrMissingField = errors.New("description is missing a required field")

const (
	fieldFriendlyName = "friendlyName"
	fieldManufacturer = "manufacturer"
)

// Description holds the metadata discovery needs from a device description
type Description struct {
	// FriendlyName is the user-visible device name (e.g. "LivingRoomTV")
	FriendlyName string

	// Manufacturer is the vendor string; discovery accepts only "Novatek"
	Manufacturer string
}

var fieldPatterns = map[string]*regexp.Regexp{
	fieldFriendlyName: regexp.MustCompile(`(?s)<(?:[\w.-]+:)?friendlyName[^>]*>(.*?)</(?:[\w.-]+:)?friendlyName>`),
	fieldManufacturer: regexp.MustCompile(`(?s)<(?:[\w.-]+:)?manufacturer[^>]*>(.*?)</(?:[\w.-]+:)?manufacturer>`),
}

// Parse extracts friendlyName and manufacturer from a description document.
//
// Well-formed XML is walked token by token, so element nesting and namespace
// prefixes do not matter and the first occurrence of each element wins. Text
// that is not well-formed XML falls back to pattern matching. Values are
// trimmed of surrounding whitespace.
func Parse(text string) (*Description, error) {
	fields, xmlErr := scanXML(text)
	if xmlErr != nil {
		// Fill in whatever the decoder did not reach before failing
		for name, re := range fieldPatterns {
			if fields[name] != "" {
				continue
			}
			if m := re.FindStringSubmatch(text); m != nil {
				fields[name] = strings.TrimSpace(html.UnescapeString(m[1]))
			}
		}
	}

	desc := &Description{
		FriendlyName: fields[fieldFriendlyName],
		Manufacturer: fields[fieldManufacturer],
	}

	if desc.FriendlyName == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, fieldFriendlyName)
	}
	if desc.Manufacturer == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, fieldManufacturer)
	}

	return desc, nil
}

// scanXML walks the document and collects the first value of each wanted
// element. It stops early once every field is found.
func scanXML(text string) (map[string]string, error) {
	fields := make(map[string]string, len(fieldPatterns))

	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = false

	var current string
	var buf strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return fields, nil
		}
		if err != nil {
			return fields, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if _, wanted := fieldPatterns[t.Name.Local]; wanted && fields[t.Name.Local] == "" {
				current = t.Name.Local
				buf.Reset()
			}
		case xml.CharData:
			if current != "" {
				buf.Write(t)
			}
		case xml.EndElement:
			if current != "" && t.Name.Local == current {
				fields[current] = strings.TrimSpace(buf.String())
				current = ""
				if len(fields) == len(fieldPatterns) && allSet(fields) {
					return fields, nil
				}
			}
		}
	}
}

func allSet(fields map[string]string) bool {
	for _, v := range fields {
		if v == "" {
			return false
		}
	}
	return true
}
