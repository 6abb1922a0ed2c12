package caldavxml

import (
	"bytes"
	"encoding/xml"
	"io"
)

// bytesPerEventEstimate and overhead back the allocation-conscious
// buffer pre-sizing called for in §4.3.
const (
	bytesPerEventEstimate = 512
	overheadBytes         = 1024
)

// WriteMultiStatus marshals ms to w as a well-formed, namespace-qualified
// 207 Multi-Status body, with the output buffer pre-sized to roughly
// bytesPerEventEstimate octets per response plus a fixed overhead.
func WriteMultiStatus(w io.Writer, ms *MultiStatus) error {
	buf := bytes.NewBuffer(make([]byte, 0, overheadBytes+bytesPerEventEstimate*len(ms.Responses)))
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	if err := enc.Encode(ms); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// StrPtr is a small helper for populating *string prop fields inline.
func StrPtr(s string) *string { return &s }
