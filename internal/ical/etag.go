package ical

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"televent/internal/models"
)

// ComputeETag implements the etag-purity fingerprint (§4.2): a SHA-256
// over client-visible fields only. Timestamps (created_at, updated_at)
// never enter the hash, so clock skew cannot cause a spurious conflict
// (invariant 1, §8).
func ComputeETag(e *models.Event) string {
	h := sha256.New()
	h.Write([]byte(e.UID))
	h.Write(pipe)
	h.Write([]byte(e.Summary))
	h.Write(pipe)
	h.Write([]byte(e.Description))
	h.Write(pipe)
	h.Write([]byte(e.Location))
	h.Write(pipe)
	if e.Timing.IsAllDay {
		writeBE(h, properDayNumber(e.Timing.StartDate))
		writeBE(h, properDayNumber(e.Timing.EndDate))
	} else {
		writeBE(h, e.Timing.Start.Unix())
		writeBE(h, int64(e.Timing.Start.Nanosecond()))
		writeBE(h, e.Timing.End.Unix())
		writeBE(h, int64(e.Timing.End.Nanosecond()))
	}
	h.Write(pipe)
	h.Write([]byte(e.Status))
	h.Write(pipe)
	h.Write([]byte(e.RRule))
	return hex.EncodeToString(h.Sum(nil))
}

var pipe = []byte("|")

func writeBE(h hash.Hash, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	h.Write(b[:])
}

// properDayNumber is a proleptic day count (days since the Unix epoch)
// for a UTC-midnight date value.
func properDayNumber(t interface{ Unix() int64 }) int64 {
	return t.Unix() / 86400
}
