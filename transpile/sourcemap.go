package transpile

import (
	"encoding/json"
	"strings"

	"github.com/scriptcore/bsc/source"
)

// SourceMap is a source map v3 document (https://sourcemaps.info/spec.html),
// per spec §4.10 ("emit a trailing source-map-v3 comment"). The teacher
// has no analogue (cue/format never lowers to a different dialect), so
// this encoder is hand-written against the public v3 spec rather than
// grounded in a pack example.
type SourceMap struct {
	Version    int      `json:"version"`
	File       string   `json:"file"`
	SourceRoot string   `json:"sourceRoot,omitempty"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

const b64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// encodeVLQ base64-VLQ encodes a single signed integer, per the source
// map v3 spec's "Base64 VLQ" encoding.
func encodeVLQ(n int) string {
	var sb strings.Builder
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		sb.WriteByte(b64Chars[digit])
		if v == 0 {
			break
		}
	}
	return sb.String()
}

// buildSourceMap encodes one mapping segment per generated line (column 0
// of each line maps to the start of its corresponding source line), which
// is sufficient resolution for the line-oriented lowering this package
// performs (no sub-statement mappings are produced).
func buildSourceMap(f *source.File, mappings []mapping, sourceRoot string) *SourceMap {
	var segments []string
	prevGenCol, prevSrcLine, prevSrcCol := 0, 0, 0
	var prevGenLine int
	for i, m := range mappings {
		var line strings.Builder
		if i == 0 || m.genLine != prevGenLine {
			prevGenCol = 0
		}
		line.WriteString(encodeVLQ(m.genCol - prevGenCol))
		line.WriteString(encodeVLQ(0)) // sources index, single source per file
		line.WriteString(encodeVLQ(m.sourceLine - prevSrcLine))
		line.WriteString(encodeVLQ(m.sourceCol - prevSrcCol))
		segments = append(segments, line.String())
		prevGenCol, prevSrcLine, prevSrcCol, prevGenLine = m.genCol, m.sourceLine, m.sourceCol, m.genLine
	}
	return &SourceMap{
		Version:    3,
		File:       baseName(f.SrcPath) + ".brs",
		SourceRoot: sourceRoot,
		Sources:    []string{f.SrcPath},
		Names:      []string{},
		Mappings:   strings.Join(segments, ";"),
	}
}

// Marshal renders the source map as JSON text, suitable for writing to
// the sibling `.map` file spec §4.10 names.
func (m *SourceMap) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
