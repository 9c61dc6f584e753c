// Package sniff guesses a file extension for decrypted attachment bytes.
package sniff

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// SampleSize bounds how much of the buffer the text heuristics look at.
	SampleSize = 1024

	DefaultExtension = "bin"
	DefaultFileName  = "attachment"
)

type signature struct {
	ext   string
	magic []byte
}

// signatures is checked in order; the first match wins. zip is listed
// before docx, so OOXML documents are reported as zip.
var signatures = []signature{
	{"pdf", []byte{0x25, 0x50, 0x44, 0x46}},
	{"png", []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}},
	{"jpg", []byte{0xff, 0xd8, 0xff}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"zip", []byte{0x50, 0x4b, 0x03, 0x04}},
	{"doc", []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}},
	{"docx", []byte{0x50, 0x4b, 0x03, 0x04, 0x14, 0x00, 0x06, 0x00}},
	{"mp3", []byte{0x49, 0x44, 0x33}},
	{"mp4", []byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70}},
	{"mp4", []byte{0x00, 0x00, 0x00, 0x20, 0x66, 0x74, 0x79, 0x70}},
}

// textRule classifies a text sample. raw is the sample as-is, lower is the
// lower-cased copy.
type textRule struct {
	ext   string
	match func(raw, lower string) bool
}

var textRules = []textRule{
	{"json", func(raw, _ string) bool {
		return json.Valid([]byte(strings.TrimSpace(raw)))
	}},
	{"html", func(_, lower string) bool {
		return containsAny(lower, "<!doctype html>", "<html", "<body")
	}},
	{"js", func(_, lower string) bool {
		return containsAny(lower, "function", "const ", "var ", "let ")
	}},
	{"css", func(_, lower string) bool {
		return strings.Contains(lower, "{") && strings.Contains(lower, "}") &&
			containsAny(lower, ".", "#") && strings.Contains(lower, ":")
	}},
	{"txt", func(string, string) bool { return true }},
}

// Detect returns the extension (without dot) that best describes data.
// It never fails; unknown binary content is "bin".
func Detect(data []byte) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.ext
		}
	}

	sample := data
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}
	if !isText(sample) {
		return DefaultExtension
	}

	raw := string(sample)
	lower := strings.ToLower(raw)
	for _, rule := range textRules {
		if rule.match(raw, lower) {
			return rule.ext
		}
	}
	return DefaultExtension
}

// isText reports whether every byte is printable ASCII, tab, LF or CR.
// An empty sample is not text.
func isText(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	for _, b := range sample {
		if b > 127 || (b < 32 && b != '\t' && b != '\n' && b != '\r') {
			return false
		}
	}
	return true
}

// FileName returns name when it already carries an extension, otherwise
// name plus the detected extension. An empty name becomes "attachment".
func FileName(name string, data []byte) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultFileName
	}
	if strings.Contains(name, ".") {
		return name
	}
	return name + "." + Detect(data)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
